// Package logger 提供携带请求上下文字段的日志工具。
//
// 中间件把 request_id、tenant_id 与 OpenTelemetry 的 trace/span 写入
// context，业务代码通过 FromContext 取得自动附带这些字段的 logger。
package logger

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

const (
	FieldRequestID = "request_id"
	FieldTenantID  = "tenant_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
)

type fieldsKey struct{}

// fields 不可变，写入时复制。
type fields map[string]any

func fieldsFrom(ctx context.Context) fields {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(fieldsKey{}).(fields)
	return f
}

func withField(ctx context.Context, key string, value any) context.Context {
	prev := fieldsFrom(ctx)
	next := make(fields, len(prev)+1)
	for k, v := range prev {
		next[k] = v
	}
	next[key] = value
	return context.WithValue(ctx, fieldsKey{}, next)
}

// WithRequestID 将 request_id 写入日志字段，空值忽略。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return withField(ctx, FieldRequestID, requestID)
}

// WithTenantID 将 tenant_id 写入日志字段，空值忽略。
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	if tenantID == "" {
		return ctx
	}
	return withField(ctx, FieldTenantID, tenantID)
}

// WithTrace 从 ctx 中的 span 提取 trace_id 与 span_id。
// 没有有效 span 时原样返回。
func WithTrace(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ctx
	}
	ctx = withField(ctx, FieldTraceID, sc.TraceID().String())
	return withField(ctx, FieldSpanID, sc.SpanID().String())
}

// Fields 返回按键排序的 key/value 列表。
func Fields(ctx context.Context) []any {
	f := fieldsFrom(ctx)
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		kv = append(kv, k, f[k])
	}
	return kv
}

// FromContext 返回附带 ctx 日志字段的全局 logger。
func FromContext(ctx context.Context) core.Logger {
	base := logger.Global()
	if kv := Fields(ctx); len(kv) > 0 {
		return base.With(kv...)
	}
	return base
}
