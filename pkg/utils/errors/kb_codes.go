package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 知识库服务错误码 (服务代码 20)
var (
	// 请求参数错误 (类别 01)
	ErrInvalidContentType = Register(New(MakeCode(ServiceKB, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Unsupported content type", "不支持的内容类型"))
	ErrEmptyQuery         = Register(New(MakeCode(ServiceKB, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Query must not be empty", "查询不能为空"))

	// 资源错误 (类别 04)
	ErrTenantNotFound     = Register(New(MakeCode(ServiceKB, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Tenant not found", "租户不存在"))
	ErrDocumentNotFound   = Register(New(MakeCode(ServiceKB, CategoryResource, 2), http.StatusNotFound, codes.NotFound, "Document not found", "文档不存在"))
	ErrCollectionNotFound = Register(New(MakeCode(ServiceKB, CategoryResource, 3), http.StatusNotFound, codes.NotFound, "Collection not found", "集合不存在"))

	// 内部错误 (类别 07)
	ErrCollectionCreate = Register(New(MakeCode(ServiceKB, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Collection could not be created", "集合创建失败"))
	ErrIndexFailed      = Register(New(MakeCode(ServiceKB, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Indexing failed", "索引失败"))

	// 依赖服务错误 (类别 10)
	ErrStoreUnavailable = Register(New(MakeCode(ServiceKB, CategoryNetwork, 1), http.StatusServiceUnavailable, codes.Unavailable, "Vector store unavailable", "向量存储不可用"))
	ErrLLMUnavailable   = Register(New(MakeCode(ServiceKB, CategoryNetwork, 2), http.StatusServiceUnavailable, codes.Unavailable, "Language model unavailable", "语言模型不可用"))
)
