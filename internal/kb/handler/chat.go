package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/tenant-kb/internal/kb/biz"
	infralog "github.com/kart-io/tenant-kb/pkg/infra/logger"
	"github.com/kart-io/tenant-kb/pkg/llm"
	"github.com/kart-io/tenant-kb/pkg/utils/errors"
	"github.com/kart-io/tenant-kb/pkg/utils/response"
)

// ChatRequest 回答与对话请求体。
type ChatRequest struct {
	Query             string        `json:"query"`
	History           []llm.Message `json:"history"`
	TopK              int           `json:"top_k"`
	UseStructuredData *bool         `json:"use_structured_data"`
}

func (h *Handler) bindChat(c *gin.Context) (biz.ChatRequest, bool) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return biz.ChatRequest{}, false
	}
	return biz.ChatRequest{
		TenantID:          c.Param("tenant"),
		Query:             req.Query,
		History:           req.History,
		TopK:              req.TopK,
		UseStructuredData: req.UseStructuredData,
	}, true
}

// Answer POST /v1/tenants/:tenant/answer
func (h *Handler) Answer(c *gin.Context) {
	req, ok := h.bindChat(c)
	if !ok {
		return
	}

	text, err := h.chat.Answer(c.Request.Context(), req)
	if err != nil {
		failWith(c, err, errors.ErrLLMUnavailable)
		return
	}
	response.OK(c, gin.H{"answer": text})
}

// Chat POST /v1/tenants/:tenant/chat
func (h *Handler) Chat(c *gin.Context) {
	req, ok := h.bindChat(c)
	if !ok {
		return
	}

	resp, err := h.chat.Chat(c.Request.Context(), req)
	if err != nil {
		failWith(c, err, errors.ErrLLMUnavailable)
		return
	}
	response.OK(c, resp)
}

// ChatStream POST /v1/tenants/:tenant/chat/stream
// 流开始前的错误以 JSON 返回，之后的错误以文本事件出现在流中。
func (h *Handler) ChatStream(c *gin.Context) {
	req, ok := h.bindChat(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	events, err := h.chat.Stream(ctx, req)
	if err != nil {
		failWith(c, err, errors.ErrLLMUnavailable)
		return
	}

	sse, err := NewSSEWriter(c.Writer)
	if err != nil {
		failWith(c, err, errors.ErrInternal)
		return
	}
	done, err := sse.Pump(ctx, events)
	if err != nil {
		infralog.FromContext(ctx).Warnw("chat stream aborted", "error", err.Error())
		return
	}
	if !done {
		infralog.FromContext(ctx).Debugw("chat stream closed without done event")
	}
}
