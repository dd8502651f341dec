package biz

import (
	"sort"
	"strings"

	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
)

// 公共属性
const (
	propTenantID       = "tenant_id"
	propFullTextSearch = "full_text_search"
	propDocID          = "doc_id"
	propTitle          = "title"
	propContent        = "content"
	propSource         = "source"
	propMetadata       = "metadata"
	propServices       = "services"
)

// typeFields 每种内容类型的固定属性 (不含 tenant_id)。
var typeFields = map[model.ContentType][]string{
	model.ContentTypeDocument: {propDocID, propTitle, propContent, propSource, propMetadata},
	model.ContentTypeOffice: {
		"name", "description", "address", "opening_hours",
		"contact_phone", "contact_email", "contact_website", propServices, propFullTextSearch,
	},
	model.ContentTypeSchool: {
		"name", "school_type", "address", "principal", "description",
		"contact_phone", "contact_email", "contact_website", propFullTextSearch,
	},
	model.ContentTypeEvent: {
		"title", "description", "start_date", "end_date", "location", "organizer",
		"contact_phone", "contact_email", "contact_website", propFullTextSearch,
	},
}

// SchemaFor 返回内容类型的集合定义。
func SchemaFor(name string, contentType model.ContentType) store.CollectionSpec {
	fields := typeFields[contentType]
	props := make([]store.Property, 0, len(fields)+1)
	props = append(props, store.Property{Name: propTenantID})
	for _, f := range fields {
		props = append(props, store.Property{Name: f, Array: f == propServices})
	}
	return store.CollectionSpec{
		Name:        name,
		Description: "tenant " + string(contentType) + " collection",
		Properties:  props,
	}
}

// knownField 判断属性是否属于该类型的固定 schema。
func knownField(contentType model.ContentType, field string) bool {
	for _, f := range typeFields[contentType] {
		if f == field {
			return true
		}
	}
	return false
}

// documentText 文档的向量化输入。
func documentText(title, content string) string {
	return strings.TrimSpace(title + "\n\n" + content)
}

// fullTextOf 按键排序拼接全部非空扁平值。
func fullTextOf(flat map[string]any) string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := flat[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				parts = append(parts, s)
			}
		case []string:
			for _, s := range v {
				if s = strings.TrimSpace(s); s != "" {
					parts = append(parts, s)
				}
			}
		}
	}
	return strings.Join(parts, " ")
}
