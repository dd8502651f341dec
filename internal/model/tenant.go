package model

import (
	"strings"
	"time"
)

// Tenant is the relational read model the knowledge base needs.
type Tenant struct {
	ID                 string            `json:"id" gorm:"primaryKey;size:64;comment:租户ID"`
	Name               string            `json:"name" gorm:"size:255;not null;comment:租户名称"`
	CustomInstructions string            `json:"custom_instructions" gorm:"type:text;comment:自定义指令"`
	Language           string            `json:"language" gorm:"size:16;comment:回答语言"`
	Tone               string            `json:"tone" gorm:"size:64;comment:语气"`
	MaxAnswerTokens    int               `json:"max_answer_tokens" gorm:"default:0;comment:回答最大token数"`
	UIComponentRules   []UIComponentRule `json:"ui_component_rules,omitempty" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (Tenant) TableName() string {
	return "kb_tenants"
}

// UIComponentRule maps trigger phrases in a query to a UI component the
// model should emit.
type UIComponentRule struct {
	ID             uint64   `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID       string   `json:"tenant_id" gorm:"size:64;index:idx_rule_tenant;not null"`
	Component      string   `json:"component" gorm:"size:128;not null;comment:组件名称"`
	TriggerPhrases []string `json:"trigger_phrases" gorm:"serializer:json;type:text;comment:触发短语"`
	Description    string   `json:"description" gorm:"type:text"`
	Example        string   `json:"example" gorm:"type:text;comment:租户提供的示例JSON"`
	Enabled        bool     `json:"enabled" gorm:"default:true"`
}

// TableName returns the table name for GORM.
func (UIComponentRule) TableName() string {
	return "kb_ui_component_rules"
}

// Matches reports whether any trigger phrase occurs in query, ignoring case.
func (r *UIComponentRule) Matches(query string) bool {
	if !r.Enabled {
		return false
	}
	q := strings.ToLower(query)
	for _, p := range r.TriggerPhrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// TenantDefaults holds the fallback values for optional tenant style fields.
type TenantDefaults struct {
	Language        string
	Tone            string
	MaxAnswerTokens int
}

// TenantConfig is a tenant with every optional field resolved.
type TenantConfig struct {
	ID                 string
	Name               string
	CustomInstructions string
	Language           string
	Tone               string
	MaxAnswerTokens    int
	UIRules            []UIComponentRule
}

// Resolve fills unset style fields from d.
func (t *Tenant) Resolve(d TenantDefaults) *TenantConfig {
	cfg := &TenantConfig{
		ID:                 t.ID,
		Name:               t.Name,
		CustomInstructions: strings.TrimSpace(t.CustomInstructions),
		Language:           t.Language,
		Tone:               t.Tone,
		MaxAnswerTokens:    t.MaxAnswerTokens,
		UIRules:            t.UIComponentRules,
	}
	if cfg.Name == "" {
		cfg.Name = t.ID
	}
	if cfg.Language == "" {
		cfg.Language = d.Language
	}
	if cfg.Tone == "" {
		cfg.Tone = d.Tone
	}
	if cfg.MaxAnswerTokens <= 0 {
		cfg.MaxAnswerTokens = d.MaxAnswerTokens
	}
	return cfg
}
