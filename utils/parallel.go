// Package utils contains small helpers shared by the reconstruction packages.
package utils

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"
)

// ParallelFactor is the number of goroutines row-parallel work is split across. Tests lower it to
// exercise uneven splits.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

type (
	// MemberWorkFunc runs for each work item (member) of a group.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkFunc runs to determine what work members should do, if any.
	GroupWorkFunc func(groupNum, groupSize, from, to int) MemberWorkFunc
)

// GroupWorkParallel splits totalSize work items into contiguous ranges, one per group, and runs
// each group on its own goroutine. Every item in [0, totalSize) is visited exactly once. The
// context is checked before groups start; a cancelled context skips all work.
func GroupWorkParallel(ctx context.Context, totalSize int, groupWork GroupWorkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if totalSize <= 0 {
		return nil
	}
	numGroups := ParallelFactor
	if numGroups > totalSize {
		numGroups = totalSize
	}
	groupSize := totalSize / numGroups
	extra := totalSize % numGroups

	var wait sync.WaitGroup
	wait.Add(numGroups)
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		groupNum := groupNum
		utils.PanicCapturingGo(func() {
			defer wait.Done()

			from := groupSize * groupNum
			to := groupSize * (groupNum + 1)
			if groupNum == numGroups-1 {
				to += extra
			}
			memberWork := groupWork(groupNum, to-from, from, to)
			if memberWork == nil {
				return
			}
			memberNum := 0
			for workNum := from; workNum < to; workNum++ {
				memberWork(memberNum, workNum)
				memberNum++
			}
		})
	}
	wait.Wait()
	return nil
}

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs every function on its own goroutine and waits for all of them. The first
// failure cancels the context seen by the rest. A panic is reported as an error. The returned error
// combines every failure except cancellations caused by an earlier failure.
func RunInParallel(ctx context.Context, fs []SimpleFunc) (time.Duration, error) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var combined error
	for _, f := range fs {
		f := f
		g.Go(func() (err error) {
			defer func() {
				if thePanic := recover(); thePanic != nil {
					err = fmt.Errorf("got panic running something in parallel: %v", thePanic)
				}
				if err == nil {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if combined == nil || !errors.Is(err, context.Canceled) {
					combined = multierr.Append(combined, err)
				}
			}()
			return f(gctx)
		})
	}
	//nolint:errcheck
	g.Wait()
	return time.Since(start), combined
}
