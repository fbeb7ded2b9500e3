package worker

import (
	"fmt"

	"github.com/cpplab/cpplab/runner"
)

// BuildCmd asks the worker to compile source text into a stored artifact.
type BuildCmd struct {
	Source string
}

// RunCmd asks the worker to execute a stored artifact. FileID is ignored when
// the request also carries a BuildCmd; the freshly built id is used instead.
type RunCmd struct {
	FileID         string
	Stdin          string
	ExpectedOutput *string
}

// Request defines single worker request. At least one of Build and Run must
// be set; both together form the one-shot create-and-run operation.
type Request struct {
	RequestID string
	Build     *BuildCmd
	Run       *RunCmd
}

// BuildResult defines the build part of a response
type BuildResult struct {
	FileID string
	Error  error
}

// RunResult defines the run part of a response
type RunResult struct {
	*runner.Result
	Error error
}

// Response defines worker response for single request. Run is nil when no run
// was requested or when the preceding build failed.
type Response struct {
	RequestID string
	Build     *BuildResult
	Run       *RunResult
}

func (r Response) String() string {
	b, rr := "<nil>", "<nil>"
	if r.Build != nil {
		b = fmt.Sprintf("{FileID:%s Error:%v}", r.Build.FileID, r.Build.Error)
	}
	if r.Run != nil {
		rr = fmt.Sprintf("{Result:%+v Error:%v}", r.Run.Result, r.Run.Error)
	}
	return fmt.Sprintf("{RequestID:%s Build:%s Run:%s}", r.RequestID, b, rr)
}
