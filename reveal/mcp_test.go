package reveal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "unveil-test", Version: "0.1.0"}

func mcpSession(t *testing.T, pipe *Pipeline) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	pipe.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(testMCPImpl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, result.IsError
}

func TestMCP_PollAndTranscript(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.rs"), "a\nb\n")
	session := mcpSession(t, New(Config{Root: root}, WithSource(lineSource{})))

	text, isErr := mcpCall(t, session, "unveil_poll", map[string]any{"path": "main.rs"})
	if isErr {
		t.Fatalf("poll failed: %s", text)
	}
	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Class != "code" || len(res.Ops) != 2 {
		t.Fatalf("poll result: %+v", res)
	}

	text, isErr = mcpCall(t, session, "unveil_transcript", map[string]any{"class": "code"})
	if isErr {
		t.Fatalf("transcript failed: %s", text)
	}
	var tr struct {
		Markdown string `json:"markdown"`
	}
	json.Unmarshal([]byte(text), &tr)
	if !strings.Contains(tr.Markdown, "a") || !strings.Contains(tr.Markdown, "b") {
		t.Fatalf("transcript: %q", tr.Markdown)
	}

	text, isErr = mcpCall(t, session, "unveil_reset", map[string]any{"class": "code"})
	if isErr {
		t.Fatalf("reset failed: %s", text)
	}
	text, _ = mcpCall(t, session, "unveil_poll", map[string]any{"path": "main.rs"})
	json.Unmarshal([]byte(text), &res)
	if len(res.Ops) != 2 {
		t.Fatalf("poll after reset: %+v", res)
	}
}

func TestMCP_Detect(t *testing.T) {
	session := mcpSession(t, New(Config{}, WithSource(lineSource{})))

	text, isErr := mcpCall(t, session, "unveil_detect", map[string]any{"path": "notes.md"})
	if isErr {
		t.Fatalf("detect failed: %s", text)
	}
	var resp map[string]string
	json.Unmarshal([]byte(text), &resp)
	if resp["class"] != "prose" || resp["hint"] != "md" {
		t.Fatalf("detect: %v", resp)
	}

	if text, isErr := mcpCall(t, session, "unveil_detect", map[string]any{"path": "Makefile"}); !isErr {
		t.Fatalf("expected tool error, got %s", text)
	}
}

func TestMCP_Errors(t *testing.T) {
	session := mcpSession(t, New(Config{Root: t.TempDir()}, WithSource(lineSource{})))

	if text, isErr := mcpCall(t, session, "unveil_poll", map[string]any{"path": "../x.rs"}); !isErr {
		t.Fatalf("traversal: expected tool error, got %s", text)
	}
	if text, isErr := mcpCall(t, session, "unveil_transcript", map[string]any{"class": "html"}); !isErr {
		t.Fatalf("unknown class: expected tool error, got %s", text)
	}
}

func TestMCP_PollJournaledWithRequestID(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.rs"), "a\n")
	rec := &memRecorder{}
	session := mcpSession(t, New(Config{Root: root}, WithSource(lineSource{}), WithRecorder(rec)))

	if text, isErr := mcpCall(t, session, "unveil_poll", map[string]any{"path": "main.rs"}); isErr {
		t.Fatalf("poll failed: %s", text)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.Transport != "mcp" || !strings.HasPrefix(e.RequestID, "mcp_") {
		t.Fatalf("entry transport=%q request_id=%q", e.Transport, e.RequestID)
	}
}
