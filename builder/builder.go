// Package builder compiles submitted source text into runnable artifacts and
// registers them with the artifact store.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cpplab/cpplab/store"
	"github.com/cpplab/cpplab/toolchain"
)

// CompileError carries the compiler diagnostic stream for a failed build.
type CompileError struct {
	Diagnostics string
}

func (e *CompileError) Error() string {
	return "compilation failed: " + e.Diagnostics
}

// Config defines builder configuration
type Config struct {
	Store     *store.Store
	Toolchain toolchain.Config
	WorkDir   string
	Retention time.Duration
	Logger    *zap.Logger
}

// Builder writes source files under its working directory, invokes the
// external compiler and registers successful builds.
type Builder struct {
	fs        *store.Store
	tc        toolchain.Config
	workDir   string
	retention time.Duration
	logger    *zap.Logger
}

// DefaultRetention is the validity window for compiled artifacts.
const DefaultRetention = 24 * time.Hour

// New creates a builder
func New(conf Config) *Builder {
	b := &Builder{
		fs:        conf.Store,
		tc:        conf.Toolchain,
		workDir:   conf.WorkDir,
		retention: conf.Retention,
		logger:    conf.Logger,
	}
	if b.retention <= 0 {
		b.retention = DefaultRetention
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// Build persists source under a fresh id, compiles it and registers the
// artifact with a new validity window. On nonzero compiler exit the source
// file is discarded, the store is untouched and a *CompileError carrying the
// diagnostics verbatim is returned.
func (b *Builder) Build(ctx context.Context, source string) (string, error) {
	if err := os.MkdirAll(b.workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}

	id := uuid.NewString()
	srcPath := filepath.Join(b.workDir, id+".cpp")
	outPath := filepath.Join(b.workDir, id)

	if err := os.WriteFile(srcPath, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("write source: %w", err)
	}

	args := make([]string, 0, len(b.tc.CompileFlags)+3)
	args = append(args, b.tc.CompileFlags...)
	args = append(args, "-o", outPath, srcPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.tc.Compiler, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if rmErr := os.Remove(srcPath); rmErr != nil {
			b.logger.Warn("remove source after failed compile",
				zap.String("id", id), zap.Error(rmErr))
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("invoke compiler: %w", err)
		}
		b.logger.Info("compilation failed", zap.String("id", id))
		return "", &CompileError{Diagnostics: stderr.String()}
	}

	r := store.Record{
		OutputPath: outPath,
		SourcePath: srcPath,
		Expiration: time.Now().Add(b.retention),
	}
	if err := b.fs.Put(id, r); err != nil {
		return "", fmt.Errorf("register artifact: %w", err)
	}
	b.logger.Info("compiled and stored program", zap.String("id", id))
	return id, nil
}
