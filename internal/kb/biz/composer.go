package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/llm"
)

// ErrTenantNotFound 租户不存在。
var ErrTenantNotFound = errors.New("tenant not found")

// ComposerConfig 上下文组装参数。
type ComposerConfig struct {
	// TopK 文档检索数量。
	TopK int
	// StructuredTopK 每种结构化类型的检索上限。
	StructuredTopK int
	// UseStructuredData 是否默认检索结构化数据。
	UseStructuredData bool
	// Temperature 生成温度。
	Temperature float64
	// Defaults 租户可选字段的默认值。
	Defaults model.TenantDefaults
}

// DefaultComposerConfig 返回默认参数。
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		TopK:              5,
		StructuredTopK:    3,
		UseStructuredData: true,
		Temperature:       0.2,
		Defaults: model.TenantDefaults{
			Language:        "de",
			Tone:            "freundlich",
			MaxAnswerTokens: 1024,
		},
	}
}

// Retrieval 一次检索得到的上下文。
type Retrieval struct {
	Documents []model.SearchResult
	Entities  []model.SearchResult
	Context   string
}

// Composer 组装上下文和提示词并调用模型。
type Composer struct {
	tenants  TenantRepository
	router   *SearchRouter
	entities *EntityStore
	llm      llm.ChatProvider
	cfg      ComposerConfig
}

// NewComposer 创建上下文组装器。
func NewComposer(tenants TenantRepository, router *SearchRouter, entities *EntityStore, chat llm.ChatProvider, cfg ComposerConfig) *Composer {
	return &Composer{tenants: tenants, router: router, entities: entities, llm: chat, cfg: cfg}
}

// Config 返回组装参数。
func (c *Composer) Config() ComposerConfig {
	return c.cfg
}

// LoadTenant 读取租户并补全默认值。
func (c *Composer) LoadTenant(ctx context.Context, tenantID string) (*model.TenantConfig, error) {
	t, err := c.tenants.GetTenantConfig(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrTenantNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
	}
	return t.Resolve(c.cfg.Defaults), nil
}

// Retrieve 检索文档和 (可选) 每种结构化类型的前若干条结果。
// 结构化检索失败只记录日志。
func (c *Composer) Retrieve(ctx context.Context, tenantID, query string, topK int, useStructured bool) *Retrieval {
	if topK <= 0 {
		topK = c.cfg.TopK
	}

	docs := c.router.Search(ctx, tenantID, query, topK)
	if len(docs) > topK {
		docs = docs[:topK]
	}

	var entities []model.SearchResult
	if useStructured {
		for _, t := range model.StructuredTypes {
			res, err := c.entities.Search(ctx, tenantID, t, query, c.cfg.StructuredTopK)
			if err != nil {
				logger.Warnw("structured search failed", "tenant_id", tenantID, "type", string(t), "error", err.Error())
				continue
			}
			entities = append(entities, res...)
		}
	}

	return &Retrieval{
		Documents: docs,
		Entities:  entities,
		Context:   RenderContext(docs, entities),
	}
}

// BuildPrompt 构建单轮回答的提示词。
func (c *Composer) BuildPrompt(tenant *model.TenantConfig, query, contextText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the digital assistant of %s.\n", tenant.Name)
	if tenant.CustomInstructions != "" {
		fmt.Fprintf(&b, "\n%s\n", tenant.CustomInstructions)
	}
	b.WriteString("\nCONTEXT:\n")
	if contextText == "" {
		b.WriteString("(no matching information found)\n")
	} else {
		b.WriteString(contextText)
		b.WriteString("\n")
	}
	b.WriteString("\nINSTRUCTIONS:\n")
	b.WriteString(baseInstructions(tenant))
	fmt.Fprintf(&b, "\nQUESTION: %s\n\nANSWER:", strings.TrimSpace(query))
	return b.String()
}

func baseInstructions(tenant *model.TenantConfig) string {
	var b strings.Builder
	b.WriteString("- Prefer the structured data over the documents when both answer the question.\n")
	b.WriteString("- Include concrete details such as addresses, opening hours, phone numbers and dates.\n")
	fmt.Fprintf(&b, "- Answer in %s with a %s tone.\n", languageName(tenant.Language), tenant.Tone)
	b.WriteString("- If the context does not contain the answer, say so. Do not invent information.\n")
	return b.String()
}

// BuildChatMessages 构建流式对话的消息：系统提示 (上下文、指令、UI 组件指令)、历史、用户问题。
func (c *Composer) BuildChatMessages(tenant *model.TenantConfig, query, contextText string, history []llm.Message) []llm.Message {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are the digital assistant of %s.\n", tenant.Name)
	if tenant.CustomInstructions != "" {
		fmt.Fprintf(&sys, "\n%s\n", tenant.CustomInstructions)
	}
	sys.WriteString("\nCONTEXT:\n")
	if contextText == "" {
		sys.WriteString("(no matching information found)\n")
	} else {
		sys.WriteString(contextText)
		sys.WriteString("\n")
	}
	sys.WriteString("\nINSTRUCTIONS:\n")
	sys.WriteString(baseInstructions(tenant))
	sys.WriteString("- When you refer to offices, schools or events from the structured data, append them as a JSON array ")
	sys.WriteString(`of {"type": ..., "data": {...}} objects inside <structured_data></structured_data> tags at the end of the answer.` + "\n")
	if ui := UIDirectives(tenant.UIRules, query); ui != "" {
		sys.WriteString("\n")
		sys.WriteString(ui)
	}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: sys.String()})
	for _, m := range history {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: strings.TrimSpace(query)})
}

// GenerateOptions 返回租户的生成参数。
func (c *Composer) GenerateOptions(tenant *model.TenantConfig) llm.GenerateOptions {
	return llm.GenerateOptions{Temperature: c.cfg.Temperature, MaxTokens: tenant.MaxAnswerTokens}
}

// Answer 检索、构建提示词并生成回答。
func (c *Composer) Answer(ctx context.Context, query, tenantID string, topK int, useStructured bool) (string, error) {
	tenant, err := c.LoadTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}

	r := c.Retrieve(ctx, tenantID, query, topK, useStructured)
	prompt := c.BuildPrompt(tenant, query, r.Context)

	text, err := c.llm.GenerateText(ctx, prompt, c.GenerateOptions(tenant))
	if err != nil {
		logger.Errorw("answer generation failed", "tenant_id", tenantID, "error", err.Error())
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func languageName(code string) string {
	switch strings.ToLower(code) {
	case "de":
		return "German"
	case "en":
		return "English"
	case "fr":
		return "French"
	case "tr":
		return "Turkish"
	case "":
		return "German"
	}
	return code
}
