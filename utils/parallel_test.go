package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
	gutils "go.viam.com/utils"
)

func TestGroupWorkParallel(t *testing.T) {
	prev := ParallelFactor
	defer func() { ParallelFactor = prev }()

	for _, factor := range []int{1, 3, 8, 100} {
		ParallelFactor = factor
		const total = 37
		var mu sync.Mutex
		seen := make([]int, total)
		err := GroupWorkParallel(context.Background(), total, func(groupNum, groupSize, from, to int) MemberWorkFunc {
			test.That(t, to-from, test.ShouldEqual, groupSize)
			return func(memberNum, workNum int) {
				mu.Lock()
				seen[workNum]++
				mu.Unlock()
			}
		})
		test.That(t, err, test.ShouldBeNil)
		for _, count := range seen {
			test.That(t, count, test.ShouldEqual, 1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := GroupWorkParallel(ctx, 10, func(groupNum, groupSize, from, to int) MemberWorkFunc {
		called = true
		return nil
	})
	test.That(t, err, test.ShouldBeError, context.Canceled)
	test.That(t, called, test.ShouldBeFalse)

	err = GroupWorkParallel(context.Background(), 0, nil)
	test.That(t, err, test.ShouldBeNil)
}

func TestRunInParallel(t *testing.T) {
	wait100ms := func(ctx context.Context) error {
		gutils.SelectContextOrWait(ctx, 100*time.Millisecond)
		return ctx.Err()
	}

	elapsed, err := RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, elapsed, test.ShouldBeLessThan, 190*time.Millisecond)

	errFunc := func(ctx context.Context) error {
		return errors.New("bad")
	}

	_, err = RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms, errFunc})
	test.That(t, err, test.ShouldNotBeNil)

	panicFunc := func(ctx context.Context) error {
		panic(1)
	}

	_, err = RunInParallel(context.Background(), []SimpleFunc{panicFunc})
	test.That(t, err, test.ShouldNotBeNil)
}
