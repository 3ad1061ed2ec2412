package engine

import (
	"context"
	"sync"
)

// executor runs remote I/O tasks. Tasks must not take the engine's state
// mutex; they report back by posting events.
type executor interface {
	Go(task func(ctx context.Context))
	Wait()
}

// asyncExecutor runs each task on its own goroutine.
type asyncExecutor struct {
	ctx context.Context
	wg  sync.WaitGroup
}

func (x *asyncExecutor) Go(task func(ctx context.Context)) {
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		task(x.ctx)
	}()
}

func (x *asyncExecutor) Wait() { x.wg.Wait() }

// inlineExecutor runs each task to completion on the caller's goroutine.
type inlineExecutor struct {
	ctx context.Context
}

func (x inlineExecutor) Go(task func(ctx context.Context)) { task(x.ctx) }

func (inlineExecutor) Wait() {}
