package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/tenant-kb/internal/model"
)

// defaultComponentExamples 内置组件的默认示例。
var defaultComponentExamples = map[string]string{
	"map":           `{"component": "map", "text": "Das Rathaus finden Sie hier:", "data": {"address": "Marktplatz 1", "label": "Rathaus"}}`,
	"contact_card":  `{"component": "contact_card", "text": "So erreichen Sie das Bürgeramt:", "data": {"name": "Bürgeramt", "phone": "0123 456789", "email": "buergeramt@example.org"}}`,
	"opening_hours": `{"component": "opening_hours", "text": "Die Öffnungszeiten sind:", "data": {"monday": "08:00-12:00", "tuesday": "08:00-12:00"}}`,
	"event_list":    `{"component": "event_list", "text": "Kommende Veranstaltungen:", "data": {"events": [{"title": "Stadtfest", "start_date": "2025-06-01"}]}}`,
	"form_link":     `{"component": "form_link", "text": "Das Formular finden Sie hier:", "data": {"title": "Antrag", "url": "https://example.org/antrag"}}`,
}

// fallbackComponentExample 没有租户示例和默认示例时使用。
func fallbackComponentExample(component string) string {
	return fmt.Sprintf(`{"component": %q, "text": "Kurze Einleitung für den Nutzer", "data": {}}`, component)
}

// ComponentExample 按 租户示例 → 内置默认 → 通用兜底 的顺序选择示例。
func ComponentExample(rule model.UIComponentRule) string {
	if ex := strings.TrimSpace(rule.Example); ex != "" {
		return ex
	}
	if ex, ok := defaultComponentExamples[rule.Component]; ok {
		return ex
	}
	return fallbackComponentExample(rule.Component)
}

// MatchingRules 返回触发短语 (忽略大小写) 命中查询的规则。
func MatchingRules(rules []model.UIComponentRule, query string) []model.UIComponentRule {
	var out []model.UIComponentRule
	for _, r := range rules {
		if r.Matches(query) {
			out = append(out, r)
		}
	}
	return out
}

// UIDirectives 生成 UI 组件格式指令，无命中规则时返回空串。
func UIDirectives(rules []model.UIComponentRule, query string) string {
	matched := MatchingRules(rules, query)
	if len(matched) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("UI COMPONENTS:\n")
	b.WriteString("If one of the following components fits the answer, reply with exactly one ```json block ")
	b.WriteString("containing an object with the keys \"component\" and \"text\" (and optional \"data\"). ")
	b.WriteString("Write nothing after the block.\n")
	for _, r := range matched {
		fmt.Fprintf(&b, "\nComponent %q", r.Component)
		if d := strings.TrimSpace(r.Description); d != "" {
			fmt.Fprintf(&b, ": %s", d)
		}
		fmt.Fprintf(&b, "\nExample:\n```json\n%s\n```\n", ComponentExample(r))
	}
	return b.String()
}
