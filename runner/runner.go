// Package runner executes stored artifacts under a wall-clock budget and
// assembles the run report: captured output, timing, an optional diff against
// an expected result and a profiling excerpt.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cpplab/cpplab/store"
	"github.com/cpplab/cpplab/toolchain"
)

var (
	// ErrNotFound indicates the file id was never issued or already removed.
	ErrNotFound = errors.New("file id not found")
	// ErrExpired indicates the file id is past its validity window.
	ErrExpired = errors.New("file id has expired")
	// ErrTimeout indicates the run exceeded the wall-clock budget.
	ErrTimeout = errors.New("execution timed out")
)

// DefaultTimeout is the wall-clock budget for a single run.
const DefaultTimeout = 10 * time.Second

// Config defines runner configuration
type Config struct {
	Store     *store.Store
	Toolchain toolchain.Config
	Dir       string // working directory for runs; profiling data lands here
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Runner runs compiled artifacts as subprocesses and reports on them.
type Runner struct {
	fs      *store.Store
	tc      toolchain.Config
	dir     string
	timeout time.Duration
	logger  *zap.Logger
}

// Result carries the outcome of one run. A nonzero exit or a crash is not an
// error at this level; the program's own failure evidence rides back in
// Stderr and ExitStatus.
type Result struct {
	Stdout          string
	Stderr          string
	ExitStatus      int
	Diff            *string
	RunTime         time.Duration
	ProfilingReport string
}

// New creates a runner
func New(conf Config) *Runner {
	r := &Runner{
		fs:      conf.Store,
		tc:      conf.Toolchain,
		dir:     conf.Dir,
		timeout: conf.Timeout,
		logger:  conf.Logger,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Run executes the artifact identified by id with stdin fed to its standard
// input. The store is reloaded first so externally added records are visible.
// An expired id is lazily cleaned up (record and both backing files removed,
// store persisted) before ErrExpired is reported; other stale records are
// reaped before the subprocess starts.
func (r *Runner) Run(ctx context.Context, id, stdin string, expected *string) (*Result, error) {
	r.fs.Load()

	rec, ok := r.fs.Get(id)
	if !ok {
		r.logger.Warn("run requested for unknown file id", zap.String("id", id))
		return nil, ErrNotFound
	}
	if rec.Expired(time.Now()) {
		r.logger.Info("file id expired, cleaning up", zap.String("id", id))
		r.logCleanup(r.fs.Remove(id))
		return nil, ErrExpired
	}
	removed, errs := r.fs.Sweep(time.Now())
	for _, rid := range removed {
		r.logger.Info("cleaned up expired file", zap.String("id", rid))
	}
	r.logCleanup(errs)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, rec.OutputPath)
	cmd.Dir = r.dir
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// do not wait on inherited pipes once the budget is spent
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	runTime := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		// subprocess already killed by CommandContext; no partial output
		r.logger.Info("run timed out", zap.String("id", id), zap.Duration("budget", r.timeout))
		return nil, ErrTimeout
	}
	exitStatus := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("invoke program: %w", err)
		}
		exitStatus = exitErr.ExitCode()
	}

	report := r.profile(ctx, rec.OutputPath)

	res := &Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExitStatus:      exitStatus,
		RunTime:         runTime,
		ProfilingReport: truncateReport(squashSpaces(report), maxReportLen),
	}
	if expected != nil {
		d, err := unifiedDiff(*expected, res.Stdout)
		if err != nil {
			return nil, fmt.Errorf("compute diff: %w", err)
		}
		res.Diff = &d
	}
	return res, nil
}

// profile runs the external profiler against the executable and the profiling
// side-channel data left in the working directory by the instrumented run.
// The side-channel file is removed afterwards regardless of outcome.
func (r *Runner) profile(ctx context.Context, exePath string) string {
	defer func() {
		p := filepath.Join(r.dir, r.tc.ProfileData)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("remove profiling data", zap.String("path", p), zap.Error(err))
		}
	}()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, r.tc.Profiler, exePath, r.tc.ProfileData)
	cmd.Dir = r.dir
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		r.logger.Warn("profiler failed", zap.String("exe", exePath), zap.Error(err))
	}
	return out.String()
}

func (r *Runner) logCleanup(errs []store.CleanupError) {
	for _, e := range errs {
		r.logger.Error("cleanup failed", zap.String("id", e.ID), zap.Error(e.Err))
	}
}
