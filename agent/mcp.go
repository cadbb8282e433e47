// ABOUTME: MCP toolkit: exposes tools from an MCP server over stdio or streamable HTTP.
// ABOUTME: Params resolve statically or per-context; server content blocks map onto llm Parts.

package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harborai/loom/llm"
)

const mcpClientName = "loom"

// MCPStdioParams spawns a child process speaking MCP on its stdio.
type MCPStdioParams struct {
	Command string
	Args    []string
	Env     []string
}

// MCPStreamableHTTPParams connects to an MCP server over streamable HTTP.
// Authorization, when set, is sent as an opaque bearer header.
type MCPStreamableHTTPParams struct {
	URL           string
	Authorization string
}

// MCPParams selects the transport for one MCP server. Exactly one field
// must be set.
type MCPParams struct {
	Stdio *MCPStdioParams
	HTTP  *MCPStreamableHTTPParams
}

// MCPToolkit connects to an MCP server per session. Params come from a
// fixed value or a sync/async resolver evaluated against the caller context.
type MCPToolkit[C any] struct {
	resolve func(ctx context.Context, c C) (MCPParams, error)
}

// NewMCPToolkit creates an MCP toolkit with fixed params.
func NewMCPToolkit[C any](params MCPParams) *MCPToolkit[C] {
	return &MCPToolkit[C]{resolve: func(context.Context, C) (MCPParams, error) {
		return params, nil
	}}
}

// NewMCPToolkitFunc creates an MCP toolkit whose params are computed
// synchronously per session.
func NewMCPToolkitFunc[C any](fn func(c C) (MCPParams, error)) *MCPToolkit[C] {
	return &MCPToolkit[C]{resolve: func(_ context.Context, c C) (MCPParams, error) {
		return fn(c)
	}}
}

// NewMCPToolkitAsyncFunc creates an MCP toolkit whose params are computed
// asynchronously per session.
func NewMCPToolkitAsyncFunc[C any](fn func(ctx context.Context, c C) (MCPParams, error)) *MCPToolkit[C] {
	return &MCPToolkit[C]{resolve: fn}
}

// CreateSession resolves params, connects the transport, initializes the
// MCP session, and lists the server's tools.
func (t *MCPToolkit[C]) CreateSession(ctx context.Context, c C) (ToolkitSession[C], error) {
	params, err := t.resolve(ctx, c)
	if err != nil {
		return nil, err
	}

	transport, err := buildMCPTransport(ctx, params)
	if err != nil {
		return nil, err
	}

	client := mcp.NewClient(&mcp.Implementation{Name: mcpClientName, Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp connect: %w", err)
	}

	listed, err := session.ListTools(ctx, nil)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("mcp list tools: %w", err)
	}

	ts := &mcpToolkitSession[C]{session: session}
	for _, tool := range listed.Tools {
		schema, err := mcpToolSchema(tool)
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("mcp tool %s schema: %w", tool.Name, err)
		}
		ts.tools = append(ts.tools, &mcpTool[C]{
			session:     session,
			name:        tool.Name,
			description: tool.Description,
			parameters:  schema,
		})
	}
	return ts, nil
}

func buildMCPTransport(ctx context.Context, params MCPParams) (mcp.Transport, error) {
	switch {
	case params.Stdio != nil:
		cmd := exec.CommandContext(ctx, params.Stdio.Command, params.Stdio.Args...)
		if len(params.Stdio.Env) > 0 {
			cmd.Env = append(os.Environ(), params.Stdio.Env...)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	case params.HTTP != nil:
		httpClient := http.DefaultClient
		if params.HTTP.Authorization != "" {
			httpClient = &http.Client{Transport: &bearerTransport{
				authorization: params.HTTP.Authorization,
				base:          http.DefaultTransport,
			}}
		}
		return &mcp.StreamableClientTransport{
			Endpoint:   params.HTTP.URL,
			HTTPClient: httpClient,
		}, nil
	}
	return nil, NewInvariantError("mcp params must set exactly one transport")
}

// bearerTransport injects the caller-supplied authorization header.
type bearerTransport struct {
	authorization string
	base          http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", t.authorization)
	return t.base.RoundTrip(clone)
}

// mcpToolSchema converts the server's input schema into a plain map.
func mcpToolSchema(tool *mcp.Tool) (map[string]any, error) {
	if tool.InputSchema == nil {
		return map[string]any{"type": "object"}, nil
	}
	encoded, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return nil, err
	}
	var schema map[string]any
	if err := json.Unmarshal(encoded, &schema); err != nil {
		return nil, err
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	return schema, nil
}

type mcpToolkitSession[C any] struct {
	session *mcp.ClientSession
	tools   []Tool[C]

	closeOnce sync.Once
	closeErr  error
}

func (s *mcpToolkitSession[C]) SystemPrompt() string { return "" }
func (s *mcpToolkitSession[C]) Tools() []Tool[C]     { return s.tools }

func (s *mcpToolkitSession[C]) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.session.Close()
	})
	return s.closeErr
}

// mcpTool proxies one server-side tool through the MCP session.
type mcpTool[C any] struct {
	session     *mcp.ClientSession
	name        string
	description string
	parameters  map[string]any
}

func (t *mcpTool[C]) Name() string               { return t.name }
func (t *mcpTool[C]) Description() string        { return t.description }
func (t *mcpTool[C]) Parameters() map[string]any { return t.parameters }

func (t *mcpTool[C]) Execute(ctx context.Context, args json.RawMessage, c C, state *RunState) (ToolResult, error) {
	result, err := t.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      t.name,
		Arguments: args,
	})
	if err != nil {
		return ToolResult{}, err
	}

	parts, err := mcpContentToParts(result.Content)
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Content: parts, IsError: result.IsError}, nil
}

// mcpContentToParts maps MCP content blocks onto llm Parts. Resource links
// and embedded resources are dropped, matching sibling SDK behavior.
func mcpContentToParts(content []mcp.Content) ([]llm.Part, error) {
	var parts []llm.Part
	for _, block := range content {
		switch b := block.(type) {
		case *mcp.TextContent:
			parts = append(parts, llm.NewTextPart(b.Text))
		case *mcp.ImageContent:
			parts = append(parts, llm.NewImagePart(b.MIMEType, base64.StdEncoding.EncodeToString(b.Data)))
		case *mcp.AudioContent:
			format, err := llm.AudioFormatFromMIMEType("mcp", b.MIMEType)
			if err != nil {
				return nil, err
			}
			parts = append(parts, llm.NewAudioPart(base64.StdEncoding.EncodeToString(b.Data), format))
		}
	}
	return parts, nil
}

var _ Toolkit[struct{}] = (*MCPToolkit[struct{}])(nil)
