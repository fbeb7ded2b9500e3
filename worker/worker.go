// Package worker dispatches build and run requests onto a bounded pool of
// goroutines and sequences the composite create-and-run operation.
package worker

import (
	"context"
	"sync"

	"github.com/cpplab/cpplab/runner"
)

const maxWaiting = 512

// Builder compiles submitted source text into a stored artifact.
type Builder interface {
	Build(ctx context.Context, source string) (string, error)
}

// Runner executes a stored artifact.
type Runner interface {
	Run(ctx context.Context, id, stdin string, expected *string) (*runner.Result, error)
}

// Config defines worker configuration
type Config struct {
	Builder      Builder
	Runner       Runner
	Parallelism  int
	ExecObserver func(Response)
}

// Worker defines interface for executor
type Worker interface {
	Start()
	Submit(context.Context, *Request) <-chan Response
	Execute(context.Context, *Request) <-chan Response
	Shutdown()
}

// worker defines executor worker
type worker struct {
	builder     Builder
	runner      Runner
	parallelism int

	execObserver func(Response)

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	workCh    chan workRequest
	done      chan struct{}
}

type workRequest struct {
	*Request
	context.Context
	resultCh chan<- Response
}

// New creates new worker
func New(conf Config) Worker {
	return &worker{
		builder:      conf.Builder,
		runner:       conf.Runner,
		parallelism:  conf.Parallelism,
		execObserver: conf.ExecObserver,
	}
}

// Start starts worker loops with given parallelism
func (w *worker) Start() {
	w.startOnce.Do(func() {
		w.workCh = make(chan workRequest, maxWaiting)
		w.done = make(chan struct{})
		w.wg.Add(w.parallelism)
		for i := 0; i < w.parallelism; i++ {
			go w.loop()
		}
	})
}

// Submit submits a single request
func (w *worker) Submit(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	w.workCh <- workRequest{
		Request:  req,
		Context:  ctx,
		resultCh: ch,
	}
	return ch
}

// Execute will execute the request in new goroutine (bypass the parallelism limit)
func (w *worker) Execute(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		wq := workRequest{
			Request:  req,
			Context:  ctx,
			resultCh: ch,
		}
		w.workDoCmd(wq)
	}()
	return ch
}

// Shutdown waits all worker to finish
func (w *worker) Shutdown() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req, ok := <-w.workCh:
			if !ok {
				return
			}
			w.workDoCmd(req)
		case <-w.done:
			return
		}
	}
}

func (w *worker) workDoCmd(req workRequest) {
	var rt Response
	switch {
	case req.Build != nil && req.Run != nil:
		rt = w.workDoBuildRun(req.Context, req.Build, req.Run)
	case req.Build != nil:
		rt = Response{Build: w.workDoBuild(req.Context, req.Build)}
	case req.Run != nil:
		rt = Response{Run: w.workDoRun(req.Context, req.Run)}
	}
	rt.RequestID = req.RequestID
	if w.execObserver != nil {
		w.execObserver(rt)
	}
	req.resultCh <- rt
}

func (w *worker) workDoBuild(ctx context.Context, b *BuildCmd) *BuildResult {
	id, err := w.builder.Build(ctx, b.Source)
	return &BuildResult{FileID: id, Error: err}
}

func (w *worker) workDoRun(ctx context.Context, rc *RunCmd) *RunResult {
	res, err := w.runner.Run(ctx, rc.FileID, rc.Stdin, rc.ExpectedOutput)
	return &RunResult{Result: res, Error: err}
}

// workDoBuildRun builds then runs the fresh artifact. A failed build
// short-circuits: the run is never attempted. The artifact is kept afterwards
// for later direct re-execution.
func (w *worker) workDoBuildRun(ctx context.Context, b *BuildCmd, rc *RunCmd) Response {
	br := w.workDoBuild(ctx, b)
	rt := Response{Build: br}
	if br.Error != nil {
		return rt
	}
	run := *rc
	run.FileID = br.FileID
	rt.Run = w.workDoRun(ctx, &run)
	return rt
}
