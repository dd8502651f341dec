// Package store 提供知识库服务的数据存储层。
//
// VectorStore 抽象了按集合名隔离的向量存储 (创建/删除集合、按 ID 读写、
// 按条件删除、混合检索)，有两个实现：
//   - MilvusStore: 基于 Milvus，稠密向量 + 服务端 BM25 稀疏向量，加权重排
//   - MemoryStore: 基于内存 bleve 索引 + 余弦相似度，用于测试和本地开发
//
// TenantStore 基于 gorm 提供租户配置的只读模型。
package store
