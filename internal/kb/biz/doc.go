// Package biz 提供知识库服务的业务逻辑层。
//
// 组件按依赖顺序：
//   - CollectionManager: 按 (租户, 内容类型) 命名、创建、校验修复集合
//   - DocumentIndex: 文档的增删改、重建索引与索引状态
//   - EntityStore: 结构化实体 (office/school/event) 的扁平化存储与检索
//   - SearchRouter: 跨租户全部集合的混合检索与分数合并
//   - Composer: 上下文渲染、提示词构建、UI 组件指令注入
//   - StreamParser: 模型流式输出的增量解析
//   - ChatService: 组合以上组件，提供回答与流式对话
package biz
