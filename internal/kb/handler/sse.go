package handler

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kart-io/tenant-kb/internal/model"
)

// errStreamingUnsupported 响应不支持逐段刷新。
var errStreamingUnsupported = stderrors.New("streaming not supported")

// SSEWriter 把 StreamEvent 编码为 Server-Sent Events。
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter 设置 SSE 响应头并返回写入器。
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent 写入单个事件并立即刷新。
func (s *SSEWriter) WriteEvent(ev model.StreamEvent) error {
	if _, err := io.WriteString(s.w, FormatEvent(ev)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Pump 转发事件直到 Done、通道关闭或 ctx 取消。返回是否写出了 Done。
func (s *SSEWriter) Pump(ctx context.Context, events <-chan model.StreamEvent) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return false, nil
			}
			if err := s.WriteEvent(ev); err != nil {
				return false, err
			}
			if ev.Type == model.EventDone {
				return true, nil
			}
		}
	}
}

// FormatEvent 编码一个事件。文本事件不带 event 字段，多行文本拆成多个 data 行。
func FormatEvent(ev model.StreamEvent) string {
	var sb strings.Builder
	switch ev.Type {
	case model.EventTextDelta:
		writeData(&sb, ev.Text)
	case model.EventComponent, model.EventStructuredData:
		fmt.Fprintf(&sb, "event: %s\n", ev.Type)
		writeData(&sb, string(ev.JSON))
	case model.EventDone:
		sb.WriteString("event: done\ndata: \n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func writeData(sb *strings.Builder, payload string) {
	for _, line := range strings.Split(payload, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}
