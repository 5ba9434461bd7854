package handlers

import (
	"strconv"

	"github.com/fasthttp/router"

	xhttp "github.com/gikundiro/momo-gateway/pkg/http"

	"github.com/gikundiro/momo-gateway/internal/queue"
)

type QueueInspector interface {
	Depth() (int64, error)
	Jobs(limit int64) ([]queue.JobInfo, error)
	DeadLetters(limit int64) ([]queue.JobInfo, error)
}

// QueueHandler exposes the parse queue to operator dashboards.
type QueueHandler struct {
	q QueueInspector
}

func NewQueueHandler(q QueueInspector) *QueueHandler {
	return &QueueHandler{q: q}
}

func RegisterQueueRoutes(e *router.Group, h *QueueHandler) {
	e.GET("/queue", h.Overview)
	e.GET("/queue/dead-letters", h.DeadLetters)
}

type queueOverviewResponse struct {
	Depth int64           `json:"depth"`
	Jobs  []queue.JobInfo `json:"jobs"`
}

type deadLettersResponse struct {
	Items []queue.JobInfo `json:"items"`
}

func (h *QueueHandler) Overview(ctx *xhttp.RequestCtx) {
	depth, err := h.q.Depth()
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}

	jobs, err := h.q.Jobs(listLimit(ctx))
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}

	writeJSON(ctx, 200, queueOverviewResponse{Depth: depth, Jobs: jobs})
}

func (h *QueueHandler) DeadLetters(ctx *xhttp.RequestCtx) {
	items, err := h.q.DeadLetters(listLimit(ctx))
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, deadLettersResponse{Items: items})
}

func listLimit(ctx *xhttp.RequestCtx) int64 {
	if v := query(ctx, "limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return 100
}
