package reveal

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/unveil/idgen"
	"github.com/hazyhaar/unveil/kit"
	"github.com/hazyhaar/unveil/snapshot"
)

// RegisterMCP registers the reveal tools on an MCP server. Every call gets
// an "mcp_" request ID, which the journal records, and is logged.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerPollTool(srv)
	p.registerDetectTool(srv)
	p.registerTranscriptTool(srv)
	p.registerResetTool(srv)
}

func (p *Pipeline) middleware(name string) kit.Middleware {
	return kit.Chain(
		kit.RequestID(idgen.Prefixed("mcp_", idgen.Default)),
		kit.Logging(p.logger, name),
	)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

type pathReq struct {
	Path string `json:"path"`
}

type classReq struct {
	Class string `json:"class"`
}

var classProperty = map[string]any{
	"type":        "string",
	"enum":        []string{string(snapshot.ClassCode), string(snapshot.ClassProse)},
	"description": "Buffer class",
}

// --- poll ---

func (p *Pipeline) registerPollTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "unveil_poll",
		Description: "Render a code or Markdown file and return the insert/delete operations since the previous poll of the same buffer class.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File to poll"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return p.RenderAndDiff(ctx, req.(*pathReq).Path)
	}

	kit.RegisterMCPTool(srv, tool, p.middleware("unveil_poll")(endpoint), kit.DecodeJSON[pathReq]())
}

// --- detect ---

func (p *Pipeline) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "unveil_detect",
		Description: "Report the buffer class and language hint derived from a file name.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File name"},
		}, []string{"path"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		class, hint, err := Detect(req.(*pathReq).Path)
		if err != nil {
			return nil, err
		}
		return map[string]string{"class": string(class), "hint": hint}, nil
	}

	kit.RegisterMCPTool(srv, tool, p.middleware("unveil_detect")(endpoint), kit.DecodeJSON[pathReq]())
}

// --- transcript ---

func (p *Pipeline) registerTranscriptTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "unveil_transcript",
		Description: "Return everything revealed so far for a buffer class, as Markdown.",
		InputSchema: inputSchema(map[string]any{"class": classProperty}, []string{"class"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		class, err := snapshot.ParseClass(req.(*classReq).Class)
		if err != nil {
			return nil, err
		}
		md, err := p.Transcript(class)
		if err != nil {
			return nil, err
		}
		return map[string]string{"class": string(class), "markdown": md}, nil
	}

	kit.RegisterMCPTool(srv, tool, p.middleware("unveil_transcript")(endpoint), kit.DecodeJSON[classReq]())
}

// --- reset ---

func (p *Pipeline) registerResetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "unveil_reset",
		Description: "Forget the snapshot of a buffer class so the next poll reveals everything again.",
		InputSchema: inputSchema(map[string]any{"class": classProperty}, []string{"class"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		class, err := snapshot.ParseClass(req.(*classReq).Class)
		if err != nil {
			return nil, err
		}
		if err := p.session.Reset(class); err != nil {
			return nil, err
		}
		return map[string]string{"class": string(class), "status": "reset"}, nil
	}

	kit.RegisterMCPTool(srv, tool, p.middleware("unveil_reset")(endpoint), kit.DecodeJSON[classReq]())
}
