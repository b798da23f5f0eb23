package util

import (
	"context"
	"sync"
)

// Parallel calls fn for each input with at most limit calls in flight. The
// first error cancels the context handed to fn, stops scheduling and is
// returned; otherwise the parent's error, if any.
func Parallel[T any](parent context.Context, inputs []T, limit int, fn func(context.Context, T) error) error {
	if len(inputs) == 0 {
		return nil
	}
	limit = max(1, min(limit, len(inputs)))

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
		slots = make(chan struct{}, limit)
	)
schedule:
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			break schedule
		case slots <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}
		wg.Go(func() {
			defer func() { <-slots }()
			if err := fn(ctx, in); err != nil {
				once.Do(func() {
					first = err
					cancel()
				})
			}
		})
	}
	wg.Wait()

	if first != nil {
		return first
	}
	return parent.Err()
}
