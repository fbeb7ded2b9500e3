// Package wsexecutor exposes the create / run / create_and_run operations
// over a WebSocket connection carrying JSON frames tagged by an op field.
package wsexecutor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cpplab/cpplab/cmd/cpplab/model"
	"github.com/cpplab/cpplab/worker"
)

// Register registers web socket handle /ws
type Register interface {
	Register(*gin.Engine)
}

// New creates new websocket handle
func New(worker worker.Worker, logger *zap.Logger) Register {
	return &wsHandle{
		worker: worker,
		logger: logger,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Request is one JSON frame sent by the client.
type Request struct {
	RequestID      string  `json:"request_id,omitempty"`
	Op             string  `json:"op"` // create | run | create_and_run
	Content        string  `json:"content,omitempty"`
	FileID         string  `json:"file_id,omitempty"`
	CustomInput    string  `json:"custom_input,omitempty"`
	ExpectedOutput *string `json:"expected_output,omitempty"`
}

// Response is one JSON frame sent back to the client.
type Response struct {
	RequestID    string              `json:"request_id,omitempty"`
	Op           string              `json:"op"`
	CreateResult *model.CreateResult `json:"create_result,omitempty"`
	RunResult    *model.RunResult    `json:"run_result,omitempty"`
	Error        string              `json:"error,omitempty"`
}

type wsHandle struct {
	worker worker.Worker
	logger *zap.Logger
}

func (h *wsHandle) Register(r *gin.Engine) {
	r.GET("/ws", h.handleWS)
}

func convertRequest(req *Request) (*worker.Request, error) {
	switch req.Op {
	case "create":
		r := model.CreateRequest{Content: req.Content}
		return r.ConvertCreateRequest(req.RequestID), nil
	case "run":
		r := model.RunRequest{
			FileID:         req.FileID,
			CustomInput:    req.CustomInput,
			ExpectedOutput: req.ExpectedOutput,
		}
		return r.ConvertRunRequest(req.RequestID), nil
	case "create_and_run":
		r := model.CreateAndRunRequest{
			Content:        req.Content,
			CustomInput:    req.CustomInput,
			ExpectedOutput: req.ExpectedOutput,
		}
		return r.ConvertCreateAndRunRequest(req.RequestID), nil
	}
	return nil, fmt.Errorf("invalid op: %s", req.Op)
}

func convertResponse(op string, rt worker.Response) Response {
	resp := Response{
		RequestID: rt.RequestID,
		Op:        op,
	}
	if rt.Build != nil {
		c := model.ConvertCreateResult(rt.Build)
		resp.CreateResult = &c
	}
	if rt.Run != nil {
		r := model.ConvertRunResult(rt.Run)
		resp.RunResult = &r
	}
	return resp
}

func (h *wsHandle) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, err.Error())
		return
	}
	resultCh := make(chan Response, 128)

	// read requests
	go func() {
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		ctx, cancel := context.WithCancel(context.TODO())
		defer cancel()

		for {
			req := new(Request)
			if err := conn.ReadJSON(req); err != nil {
				h.logger.Sugar().Warn("ws read error:", err)
				return
			}
			r, err := convertRequest(req)
			if err != nil {
				resultCh <- Response{RequestID: req.RequestID, Op: req.Op, Error: err.Error()}
				continue
			}
			go func(op string) {
				ret := <-h.worker.Submit(ctx, r)
				resultCh <- convertResponse(op, ret)
			}(req.Op)
		}
	}()

	// write results
	go func() {
		defer conn.Close()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case r := <-resultCh:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(r); err != nil {
					h.logger.Sugar().Warn("ws write error:", err)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
}
