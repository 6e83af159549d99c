package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DecodeArgs unmarshals the tool arguments into a new Req. Missing
// arguments yield the zero Req.
func DecodeArgs[Req any](call *mcp.CallToolRequest) (*Req, error) {
	r := new(Req)
	if call.Params == nil || len(call.Params.Arguments) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(call.Params.Arguments, r); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterMCPTool exposes endpoint as tool. The endpoint receives a *Req
// decoded from the call arguments and its response is returned as JSON
// text. Bad arguments and endpoint errors become tool errors, never
// protocol errors.
func RegisterMCPTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint) {
	srv.AddTool(tool, func(ctx context.Context, call *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = WithTransport(ctx, "mcp")

		args, err := DecodeArgs[Req](call)
		if err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		resp, err := endpoint(ctx, args)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal %s: %w", tool.Name, err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
