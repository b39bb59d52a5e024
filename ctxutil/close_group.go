// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"os"
	"sync"
)

// CloseGroup runs goroutines that are stopped together. Goroutines receive a
// context that is canceled with os.ErrClosed when the group is closed.
type CloseGroup struct {
	closeCtx  context.Context
	causeFunc context.CancelCauseFunc

	wg sync.WaitGroup

	once sync.Once
}

func (cg *CloseGroup) init() {
	cg.closeCtx, cg.causeFunc = context.WithCancelCause(context.Background())
}

// Close cancels the group context and waits for all goroutines to return.
func (cg *CloseGroup) Close() {
	cg.once.Do(cg.init)
	cg.causeFunc(os.ErrClosed)
	cg.wg.Wait()
}

func (cg *CloseGroup) Context() context.Context {
	cg.once.Do(cg.init)
	return cg.closeCtx
}

// WithContext returns a child of the input context that is also canceled when
// the group is closed.
func (cg *CloseGroup) WithContext(ctx context.Context) (context.Context, context.CancelFunc) {
	cg.once.Do(cg.init)

	cctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(cg.closeCtx, func() {
		cancel(os.ErrClosed)
	})
	return cctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

func (cg *CloseGroup) Go(f func(ctx context.Context)) {
	cg.once.Do(cg.init)

	cg.wg.Add(1)
	go func() {
		defer cg.wg.Done()
		f(cg.closeCtx)
	}()
}
