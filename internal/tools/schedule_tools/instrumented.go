package schedule_tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/whenfree/whenfree/internal/instrumentation"
	"github.com/whenfree/whenfree/internal/logging"
)

// instrumented wraps a tool handler with invocation metrics and an audit log
// line. The user identifier is hashed before logging.
func instrumented(
	toolName string,
	deps *Deps,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}

		if deps.Metrics != nil {
			deps.Metrics.RecordToolInvocation(ctx, toolName, status, duration)
		}
		if deps.Logger != nil {
			deps.Logger.Info("tool invoked",
				logging.Tool(toolName),
				logging.UserHash(userFromArgs(request.GetArguments())),
				logging.Status(status),
				logging.Duration(duration))
		}

		return result, err
	}
}
