package model

// IndexStatus is the indexing state of a document in the vector store.
type IndexStatus string

const (
	// IndexStatusNotIndexed 文档不存在或向量尚未计算
	IndexStatusNotIndexed IndexStatus = "NOT_INDEXED"
	// IndexStatusIndexed 向量已计算
	IndexStatusIndexed IndexStatus = "INDEXED"
	// IndexStatusError 存储侧不可恢复错误 (如节点解析失败)
	IndexStatusError IndexStatus = "ERROR"
)

// Document is a free-text document stored in a tenant's primary collection.
type Document struct {
	ID       string         `json:"id"`
	TenantID string         `json:"tenant_id"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Source   string         `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentStatus is the result of a status probe.
type DocumentStatus struct {
	ID      string      `json:"id"`
	Status  IndexStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}
