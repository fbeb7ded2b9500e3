// Package restexecutor exposes the create / run / create_and_run operations
// over HTTP.
package restexecutor

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cpplab/cpplab/cmd/cpplab/model"
	"github.com/cpplab/cpplab/worker"
)

type programHandle struct {
	worker worker.Worker
	logger *zap.Logger
}

// NewProgramHandle creates a new program handle
func NewProgramHandle(worker worker.Worker, logger *zap.Logger) Register {
	return &programHandle{
		worker: worker,
		logger: logger,
	}
}

func (h *programHandle) Register(r *gin.Engine) {
	r.POST("/create", h.handleCreate)
	r.POST("/run", h.handleRun)
	r.POST("/create_and_run", h.handleCreateAndRun)
}

func (h *programHandle) handleCreate(ctx *gin.Context) {
	var req model.CreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.Error(err)
		ctx.AbortWithStatusJSON(http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, "no content provided")
		return
	}
	rt := <-h.worker.Submit(ctx.Request.Context(), req.ConvertCreateRequest(""))
	h.logger.Sugar().Debugf("response: %+v", rt)
	ctx.JSON(http.StatusOK, model.ConvertCreateResult(rt.Build))
}

func (h *programHandle) handleRun(ctx *gin.Context) {
	var req model.RunRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.Error(err)
		ctx.AbortWithStatusJSON(http.StatusBadRequest, err.Error())
		return
	}
	if req.FileID == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, "no file_id provided")
		return
	}
	rt := <-h.worker.Submit(ctx.Request.Context(), req.ConvertRunRequest(""))
	h.logger.Sugar().Debugf("response: %+v", rt)
	ctx.JSON(http.StatusOK, model.ConvertRunResult(rt.Run))
}

func (h *programHandle) handleCreateAndRun(ctx *gin.Context) {
	var req model.CreateAndRunRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.Error(err)
		ctx.AbortWithStatusJSON(http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, "no content provided")
		return
	}
	rt := <-h.worker.Submit(ctx.Request.Context(), req.ConvertCreateAndRunRequest(""))
	h.logger.Sugar().Debugf("response: %+v", rt)
	ctx.JSON(http.StatusOK, model.ConvertResponse(rt))
}
