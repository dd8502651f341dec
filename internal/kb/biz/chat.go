package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/tenant-kb/internal/kb/metrics"
	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/llm"
	"github.com/kart-io/tenant-kb/pkg/utils/json"
)

// ErrEmptyQuery 查询为空。
var ErrEmptyQuery = errors.New("query must not be empty")

// ChatRequest 一次回答或对话请求。
type ChatRequest struct {
	TenantID string
	Query    string
	History  []llm.Message
	// TopK 为 0 时使用默认值。
	TopK int
	// UseStructuredData 为 nil 时使用默认值。
	UseStructuredData *bool
}

// ChatService 组合检索、提示词、模型流式输出和解析。
type ChatService struct {
	composer *Composer
	llm      llm.ChatProvider
	cache    *AnswerCache
	metrics  *metrics.KBMetrics
}

// NewChatService 创建对话服务。cache 可为 nil。
func NewChatService(composer *Composer, chat llm.ChatProvider, cache *AnswerCache, m *metrics.KBMetrics) *ChatService {
	if m == nil {
		m = metrics.Global()
	}
	return &ChatService{composer: composer, llm: chat, cache: cache, metrics: m}
}

func (s *ChatService) resolve(req *ChatRequest) (int, bool, error) {
	if strings.TrimSpace(req.Query) == "" {
		return 0, false, ErrEmptyQuery
	}
	cfg := s.composer.Config()
	topK := req.TopK
	if topK <= 0 {
		topK = cfg.TopK
	}
	structured := cfg.UseStructuredData
	if req.UseStructuredData != nil {
		structured = *req.UseStructuredData
	}
	return topK, structured, nil
}

// Answer 返回单轮回答文本，结果按租户缓存。
func (s *ChatService) Answer(ctx context.Context, req ChatRequest) (string, error) {
	topK, structured, err := s.resolve(&req)
	if err != nil {
		return "", err
	}

	key := s.cache.Key(req.TenantID, "answer", req.Query, topK, structured)
	if cached, ok := s.cache.Get(ctx, key); ok {
		s.metrics.RecordAnswer(true, nil)
		return cached.Text, nil
	}

	text, err := s.composer.Answer(ctx, req.Query, req.TenantID, topK, structured)
	s.metrics.RecordAnswer(false, err)
	if err != nil {
		return "", err
	}
	s.cache.Set(ctx, key, &model.ChatResponse{Text: text})
	return text, nil
}

func (s *ChatService) prepare(ctx context.Context, req ChatRequest) ([]llm.Message, llm.GenerateOptions, error) {
	topK, structured, err := s.resolve(&req)
	if err != nil {
		return nil, llm.GenerateOptions{}, err
	}
	tenant, err := s.composer.LoadTenant(ctx, req.TenantID)
	if err != nil {
		return nil, llm.GenerateOptions{}, err
	}
	r := s.composer.Retrieve(ctx, req.TenantID, req.Query, topK, structured)
	msgs := s.composer.BuildChatMessages(tenant, req.Query, r.Context, req.History)
	return msgs, s.composer.GenerateOptions(tenant), nil
}

// Stream 返回解析后的事件流。租户和请求错误同步返回；
// 模型错误以一条文本事件加 Done 的形式出现在流中。通道总以 Done 结束，
// 除非 ctx 先被取消。
func (s *ChatService) Stream(ctx context.Context, req ChatRequest) (<-chan model.StreamEvent, error) {
	msgs, opts, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan model.StreamEvent, 16)
	parser := NewStreamParser()

	streamCtx, cancel := context.WithCancel(ctx)
	in, err := s.llm.StreamChat(streamCtx, msgs, opts)
	if err != nil {
		cancel()
		logger.Errorw("failed to start chat stream", "tenant_id", req.TenantID, "error", err.Error())
		s.metrics.RecordStream(false, false, err)
		events := parser.Fail(err)
		for _, ev := range events {
			out <- ev
		}
		close(out)
		return out, nil
	}

	go func() {
		// 提前终止时取消上游，让供应商的 goroutine 退出
		defer cancel()
		parser.Run(streamCtx, in, out)
		s.metrics.RecordStream(parser.ComponentEmitted(), parser.StructuredEmitted(), parser.Err())
	}()
	return out, nil
}

// Chat 聚合完整回答：可见文本、结构化数据和交互组件。
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*model.ChatResponse, error) {
	topK, structured, err := s.resolve(&req)
	if err != nil {
		return nil, err
	}

	key := ""
	if len(req.History) == 0 {
		key = s.cache.Key(req.TenantID, "chat", req.Query, topK, structured)
		if cached, ok := s.cache.Get(ctx, key); ok {
			s.metrics.RecordAnswer(true, nil)
			return cached, nil
		}
	}

	msgs, opts, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	in, err := s.llm.StreamChat(streamCtx, msgs, opts)
	if err != nil {
		s.metrics.RecordAnswer(false, err)
		return nil, fmt.Errorf("failed to start chat: %w", err)
	}

	parser := NewStreamParser()
	resp := &model.ChatResponse{}
	var text strings.Builder
	apply := func(events []model.StreamEvent) {
		for _, ev := range events {
			switch ev.Type {
			case model.EventTextDelta:
				text.WriteString(ev.Text)
			case model.EventComponent:
				var v any
				if err := json.Unmarshal(ev.JSON, &v); err == nil {
					resp.InteractiveElements = append(resp.InteractiveElements, v)
				}
			case model.EventStructuredData:
				var v any
				if err := json.Unmarshal(ev.JSON, &v); err == nil {
					resp.StructuredData = v
					text.Reset()
					text.WriteString(ev.Text)
				}
			}
		}
	}

	for chunk := range in {
		if chunk.Err != nil {
			s.metrics.RecordAnswer(false, chunk.Err)
			return nil, fmt.Errorf("chat stream failed: %w", chunk.Err)
		}
		apply(parser.Feed(chunk.Content))
		if parser.Terminated() {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	apply(parser.Finish())

	resp.Text = strings.TrimSpace(text.String())
	s.metrics.RecordAnswer(false, nil)
	if key != "" {
		s.cache.Set(ctx, key, resp)
	}
	return resp, nil
}

// InvalidateTenant 租户内容变更后清除其缓存答案。
func (s *ChatService) InvalidateTenant(ctx context.Context, tenantID string) {
	n, err := s.cache.InvalidateTenant(ctx, tenantID)
	if err != nil {
		logger.Warnw("failed to invalidate answer cache", "tenant_id", tenantID, "error", err.Error())
		return
	}
	if n > 0 {
		logger.Debugw("answer cache invalidated", "tenant_id", tenantID, "keys", n)
	}
}
