// Package model defines the wire types of the cpplab HTTP / WebSocket API and
// the converters between them and worker requests / responses.
package model

import (
	"errors"
	"fmt"

	"github.com/cpplab/cpplab/builder"
	"github.com/cpplab/cpplab/runner"
	"github.com/cpplab/cpplab/worker"
)

// CreateRequest defines the create_program operation arguments
type CreateRequest struct {
	Content string `json:"content"`
}

// RunRequest defines the run_program operation arguments
type RunRequest struct {
	FileID         string  `json:"file_id"`
	CustomInput    string  `json:"custom_input"`
	ExpectedOutput *string `json:"expected_output,omitempty"`
}

// CreateAndRunRequest defines the create_and_run_program operation arguments
type CreateAndRunRequest struct {
	Content        string  `json:"content"`
	CustomInput    string  `json:"custom_input"`
	ExpectedOutput *string `json:"expected_output,omitempty"`
}

// CreateResult defines the create_program operation result
type CreateResult struct {
	Success bool   `json:"success"`
	FileID  string `json:"file_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RunResult defines the run_program operation result. RunTime is in seconds.
type RunResult struct {
	Success         bool     `json:"success"`
	Stdout          *string  `json:"stdout,omitempty"`
	Stderr          *string  `json:"stderr,omitempty"`
	ExitStatus      *int     `json:"exit_status,omitempty"`
	Diff            *string  `json:"diff,omitempty"`
	RunTime         *float64 `json:"run_time,omitempty"`
	ProfilingReport *string  `json:"profiling_report,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// CreateAndRunResult combines both outcomes of the one-shot operation.
// RunResult is absent when the build failed.
type CreateAndRunResult struct {
	CreateResult CreateResult `json:"create_result"`
	RunResult    *RunResult   `json:"run_result,omitempty"`
}

// ConvertCreateRequest converts a create request into a worker request
func (r *CreateRequest) ConvertCreateRequest(requestID string) *worker.Request {
	return &worker.Request{
		RequestID: requestID,
		Build:     &worker.BuildCmd{Source: r.Content},
	}
}

// ConvertRunRequest converts a run request into a worker request
func (r *RunRequest) ConvertRunRequest(requestID string) *worker.Request {
	return &worker.Request{
		RequestID: requestID,
		Run: &worker.RunCmd{
			FileID:         r.FileID,
			Stdin:          r.CustomInput,
			ExpectedOutput: r.ExpectedOutput,
		},
	}
}

// ConvertCreateAndRunRequest converts a create-and-run request into a worker request
func (r *CreateAndRunRequest) ConvertCreateAndRunRequest(requestID string) *worker.Request {
	return &worker.Request{
		RequestID: requestID,
		Build:     &worker.BuildCmd{Source: r.Content},
		Run: &worker.RunCmd{
			Stdin:          r.CustomInput,
			ExpectedOutput: r.ExpectedOutput,
		},
	}
}

// ConvertCreateResult converts a worker build result into its wire form.
// Compiler diagnostics ride back verbatim in the error field.
func ConvertCreateResult(r *worker.BuildResult) CreateResult {
	if r.Error != nil {
		var ce *builder.CompileError
		if errors.As(r.Error, &ce) {
			return CreateResult{Error: ce.Diagnostics}
		}
		return CreateResult{Error: r.Error.Error()}
	}
	return CreateResult{Success: true, FileID: r.FileID}
}

// ConvertRunResult converts a worker run result into its wire form, mapping
// the failure taxonomy to its caller-visible messages.
func ConvertRunResult(r *worker.RunResult) RunResult {
	if r.Error != nil {
		return RunResult{Error: runErrorMessage(r.Error)}
	}
	res := r.Result
	runTime := res.RunTime.Seconds()
	return RunResult{
		Success:         true,
		Stdout:          &res.Stdout,
		Stderr:          &res.Stderr,
		ExitStatus:      &res.ExitStatus,
		Diff:            res.Diff,
		RunTime:         &runTime,
		ProfilingReport: &res.ProfilingReport,
	}
}

// ConvertResponse converts a worker response into the combined wire form
func ConvertResponse(rt worker.Response) CreateAndRunResult {
	res := CreateAndRunResult{}
	if rt.Build != nil {
		res.CreateResult = ConvertCreateResult(rt.Build)
	}
	if rt.Run != nil {
		r := ConvertRunResult(rt.Run)
		res.RunResult = &r
	}
	return res
}

func runErrorMessage(err error) string {
	switch {
	case errors.Is(err, runner.ErrNotFound):
		return "File ID not found."
	case errors.Is(err, runner.ErrExpired):
		return "File ID has expired."
	case errors.Is(err, runner.ErrTimeout):
		return fmt.Sprintf("Execution timed out after %.0f seconds.", runner.DefaultTimeout.Seconds())
	}
	return err.Error()
}
