package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/tenant-kb/internal/model"
)

type fieldLabel struct {
	key, label string
}

// 各结构化类型的字段渲染顺序。
var renderOrder = map[model.ContentType][]fieldLabel{
	model.ContentTypeSchool: {
		{"name", "Schule"},
		{"school_type", "Schulart"},
		{"address", "Adresse"},
		{"principal", "Schulleitung"},
		{"description", "Beschreibung"},
	},
	model.ContentTypeOffice: {
		{"name", "Amt"},
		{"description", "Beschreibung"},
		{"address", "Adresse"},
		{"opening_hours", "Öffnungszeiten"},
		{"services", "Leistungen"},
	},
	model.ContentTypeEvent: {
		{"title", "Veranstaltung"},
		{"description", "Beschreibung"},
		{"start_date", "Beginn"},
		{"end_date", "Ende"},
		{"location", "Ort"},
		{"organizer", "Veranstalter"},
	},
}

var contactLabels = []fieldLabel{
	{"phone", "Telefon"},
	{"email", "E-Mail"},
	{"website", "Website"},
}

// RenderStructured 渲染一条结构化结果。未知类型退化为通用键值渲染。
func RenderStructured(r model.SearchResult) string {
	order, ok := renderOrder[r.Type]
	if !ok {
		return renderGeneric(r)
	}

	var b strings.Builder
	for _, f := range order {
		if v := valueString(r.Data[f.key]); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.label, v)
		}
	}
	if contact, ok := r.Data["contact"].(map[string]any); ok {
		for _, f := range contactLabels {
			if v := valueString(contact[f.key]); v != "" {
				fmt.Fprintf(&b, "%s: %s\n", f.label, v)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderGeneric(r model.SearchResult) string {
	var b strings.Builder
	if r.Type != "" {
		fmt.Fprintf(&b, "Typ: %s\n", r.Type)
	}
	for _, k := range sortedKeys(r.Data) {
		switch v := r.Data[k].(type) {
		case map[string]any:
			for _, sk := range sortedKeys(v) {
				if s := valueString(v[sk]); s != "" {
					fmt.Fprintf(&b, "%s_%s: %s\n", k, sk, s)
				}
			}
		default:
			if s := valueString(v); s != "" {
				fmt.Fprintf(&b, "%s: %s\n", k, s)
			}
		}
	}
	if b.Len() == 0 {
		return r.Content
	}
	return strings.TrimRight(b.String(), "\n")
}

func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

// RenderContext 把文档和结构化结果渲染成模型上下文。结构化数据在前。
func RenderContext(docs, entities []model.SearchResult) string {
	var b strings.Builder
	if len(entities) > 0 {
		b.WriteString("## Strukturierte Daten\n\n")
		for i, e := range entities {
			fmt.Fprintf(&b, "[%d] %s\n\n", i+1, RenderStructured(e))
		}
	}
	if len(docs) > 0 {
		b.WriteString("## Dokumente\n\n")
		for i, d := range docs {
			if d.Type.Structured() {
				fmt.Fprintf(&b, "[%d] %s\n\n", i+1, RenderStructured(d))
				continue
			}
			title := d.Title
			if title == "" {
				title = "Dokument"
			}
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, title, strings.TrimSpace(d.Content))
		}
	}
	return strings.TrimSpace(b.String())
}
