package model

// StructuredEntity is a typed record (office, school, event) stored with a
// flattened property set and a synthesized full-text field.
type StructuredEntity struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	Type           ContentType    `json:"type"`
	Properties     map[string]any `json:"properties"`
	FullTextSearch string         `json:"full_text_search"`
}
