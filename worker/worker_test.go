package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cpplab/cpplab/runner"
)

type stubBuilder struct {
	id    string
	err   error
	calls atomic.Int32
}

func (b *stubBuilder) Build(_ context.Context, _ string) (string, error) {
	b.calls.Add(1)
	return b.id, b.err
}

type stubRunner struct {
	res    *runner.Result
	err    error
	calls  atomic.Int32
	lastID atomic.Value
	lastIn atomic.Value
}

func (r *stubRunner) Run(_ context.Context, id, stdin string, _ *string) (*runner.Result, error) {
	r.calls.Add(1)
	r.lastID.Store(id)
	r.lastIn.Store(stdin)
	return r.res, r.err
}

func newTestWorker(b Builder, r Runner, obs func(Response)) Worker {
	w := New(Config{
		Builder:      b,
		Runner:       r,
		Parallelism:  2,
		ExecObserver: obs,
	})
	w.Start()
	return w
}

func TestSubmitBuild(t *testing.T) {
	b := &stubBuilder{id: "id-1"}
	r := &stubRunner{}
	w := newTestWorker(b, r, nil)
	defer w.Shutdown()

	rt := <-w.Submit(context.Background(), &Request{
		RequestID: "req",
		Build:     &BuildCmd{Source: "int main() {}"},
	})
	if rt.RequestID != "req" {
		t.Fatalf("expected request id kept, got %q", rt.RequestID)
	}
	if rt.Build == nil || rt.Build.FileID != "id-1" || rt.Build.Error != nil {
		t.Fatalf("unexpected build result: %+v", rt.Build)
	}
	if rt.Run != nil {
		t.Fatal("expected no run result for build-only request")
	}
	if r.calls.Load() != 0 {
		t.Fatal("runner must not be invoked for build-only request")
	}
}

func TestSubmitRun(t *testing.T) {
	b := &stubBuilder{}
	r := &stubRunner{res: &runner.Result{Stdout: "out", RunTime: time.Millisecond}}
	w := newTestWorker(b, r, nil)
	defer w.Shutdown()

	rt := <-w.Submit(context.Background(), &Request{
		Run: &RunCmd{FileID: "id-1", Stdin: "in"},
	})
	if rt.Run == nil || rt.Run.Error != nil {
		t.Fatalf("unexpected run result: %+v", rt.Run)
	}
	if rt.Run.Stdout != "out" {
		t.Fatalf("expected stdout out, got %q", rt.Run.Stdout)
	}
	if rt.Build != nil {
		t.Fatal("expected no build result for run-only request")
	}
	if got := r.lastID.Load().(string); got != "id-1" {
		t.Fatalf("expected run against id-1, got %q", got)
	}
	if b.calls.Load() != 0 {
		t.Fatal("builder must not be invoked for run-only request")
	}
}

func TestSubmitBuildAndRun(t *testing.T) {
	b := &stubBuilder{id: "fresh"}
	r := &stubRunner{res: &runner.Result{Stdout: "hi\n"}}
	w := newTestWorker(b, r, nil)
	defer w.Shutdown()

	rt := <-w.Submit(context.Background(), &Request{
		Build: &BuildCmd{Source: "int main() {}"},
		Run:   &RunCmd{Stdin: "in"},
	})
	if rt.Build == nil || rt.Build.Error != nil {
		t.Fatalf("unexpected build result: %+v", rt.Build)
	}
	if rt.Run == nil || rt.Run.Error != nil {
		t.Fatalf("unexpected run result: %+v", rt.Run)
	}
	// the run targets the freshly built id
	if got := r.lastID.Load().(string); got != "fresh" {
		t.Fatalf("expected run against fresh id, got %q", got)
	}
	if got := r.lastIn.Load().(string); got != "in" {
		t.Fatalf("expected stdin forwarded, got %q", got)
	}
}

func TestBuildFailureShortCircuits(t *testing.T) {
	buildErr := errors.New("compilation failed")
	b := &stubBuilder{err: buildErr}
	r := &stubRunner{}
	w := newTestWorker(b, r, nil)
	defer w.Shutdown()

	rt := <-w.Submit(context.Background(), &Request{
		Build: &BuildCmd{Source: "broken"},
		Run:   &RunCmd{},
	})
	if rt.Build == nil || !errors.Is(rt.Build.Error, buildErr) {
		t.Fatalf("expected build failure surfaced, got %+v", rt.Build)
	}
	if rt.Run != nil {
		t.Fatal("run must never be attempted after a failed build")
	}
	if r.calls.Load() != 0 {
		t.Fatal("runner invoked despite failed build")
	}
}

func TestExecObserver(t *testing.T) {
	observed := make(chan Response, 1)
	b := &stubBuilder{id: "id-1"}
	w := newTestWorker(b, &stubRunner{}, func(rt Response) { observed <- rt })
	defer w.Shutdown()

	<-w.Submit(context.Background(), &Request{RequestID: "obs", Build: &BuildCmd{}})
	select {
	case rt := <-observed:
		if rt.RequestID != "obs" {
			t.Fatalf("expected observed request id obs, got %q", rt.RequestID)
		}
	case <-time.After(time.Second):
		t.Fatal("observer not invoked")
	}
}

func TestExecuteBypassesQueue(t *testing.T) {
	b := &stubBuilder{id: "id-1"}
	w := New(Config{Builder: b, Runner: &stubRunner{}, Parallelism: 1})
	// worker not started; Execute still serves the request
	rt := <-w.Execute(context.Background(), &Request{Build: &BuildCmd{}})
	if rt.Build == nil || rt.Build.FileID != "id-1" {
		t.Fatalf("unexpected result: %+v", rt.Build)
	}
}
