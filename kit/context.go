// Package kit carries the request-scoped values of zona9 (transport,
// trace id, export job id) and the Endpoint shape its MCP tools share.
package kit

import "context"

type contextKey string

const (
	TransportKey contextKey = "kit_transport" // "http", "mcp"
	TraceIDKey   contextKey = "kit_trace_id"
	ExportIDKey  contextKey = "kit_export_id"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

// WithExportID tags ctx with the capture job it runs. The id ends up in
// the capture log lines and in the export event details.
func WithExportID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ExportIDKey, id)
}
func GetExportID(ctx context.Context) string {
	v, _ := ctx.Value(ExportIDKey).(string)
	return v
}
