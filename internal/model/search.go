package model

// SearchResult is one ranked hit. Score is normalized to [0,1].
type SearchResult struct {
	ID             string         `json:"id,omitempty"`
	Title          string         `json:"title"`
	ContentPreview string         `json:"content_preview"`
	Content        string         `json:"content"`
	CollectionName string         `json:"collection_name"`
	Score          float64        `json:"score"`
	Type           ContentType    `json:"type,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

// ChatResponse is the aggregated answer returned to non-streaming callers.
type ChatResponse struct {
	Text                string `json:"text"`
	StructuredData      any    `json:"structured_data,omitempty"`
	InteractiveElements []any  `json:"interactive_elements,omitempty"`
}
