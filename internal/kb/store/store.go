package store

import (
	"context"
	"errors"
)

var (
	// ErrCollectionExists 集合已存在。
	ErrCollectionExists = errors.New("collection already exists")
	// ErrCollectionNotFound 集合不存在。
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrObjectNotFound 对象不存在。
	ErrObjectNotFound = errors.New("object not found")
	// ErrNodeResolution 存储节点解析失败，对象状态不可知。
	ErrNodeResolution = errors.New("store node resolution failed")
	// ErrUnavailable 存储后端无法连接。
	ErrUnavailable = errors.New("store unavailable")
)

// Property 描述集合的一个标量属性。
type Property struct {
	// Name 属性名。
	Name string
	// Array 是否为字符串数组。
	Array bool
}

// CollectionSpec 集合定义。
type CollectionSpec struct {
	// Name 集合名称。
	Name string
	// Description 集合描述。
	Description string
	// Properties 标量属性列表。
	Properties []Property
}

// Object 表示集合中的一个对象。
type Object struct {
	// ID 对象 ID，为空时由存储生成。
	ID string
	// Properties 属性值，string 或 []string。
	Properties map[string]any
	// Text 向量化和关键词检索的输入文本。
	Text string
	// Vector 嵌入向量，仅在 FetchByID(includeVector) 时返回。
	Vector []float32
}

// Hit 表示一条检索命中。三个排序信号至多有一个非空。
type Hit struct {
	// ID 对象 ID。
	ID string
	// Properties 属性值。
	Properties map[string]any
	// Score 混合检索分数。
	Score *float64
	// Certainty 向量检索置信度。
	Certainty *float64
	// Distance 向量距离。
	Distance *float64
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// CreateCollection 创建集合，已存在时返回 ErrCollectionExists。
	CreateCollection(ctx context.Context, spec CollectionSpec) error

	// CollectionExists 检查集合是否存在，仅在传输错误时返回 error。
	CollectionExists(ctx context.Context, name string) (bool, error)

	// ListCollections 列出全部集合名称。
	ListCollections(ctx context.Context) ([]string, error)

	// DeleteCollection 删除集合，不存在时返回 ErrCollectionNotFound。
	DeleteCollection(ctx context.Context, name string) error

	// Insert 插入对象并返回其 ID。
	Insert(ctx context.Context, collection string, obj Object) (string, error)

	// UpdateByID 整体替换已有对象，不存在时返回 ErrObjectNotFound。
	UpdateByID(ctx context.Context, collection string, obj Object) error

	// DeleteByID 按主键删除对象，不存在时返回 ErrObjectNotFound。
	DeleteByID(ctx context.Context, collection, id string) error

	// DeleteWhere 删除 field == value 的全部对象并返回删除数量。
	DeleteWhere(ctx context.Context, collection, field, value string) (int64, error)

	// FetchByID 按主键读取对象，不存在时返回 ErrObjectNotFound。
	FetchByID(ctx context.Context, collection, id string, includeVector bool) (*Object, error)

	// HybridQuery 混合检索，alpha 为向量权重。
	HybridQuery(ctx context.Context, collection, query string, alpha float64, limit int) ([]Hit, error)
}

// HasEmbedding reports whether v holds a computed embedding.
func HasEmbedding(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}
