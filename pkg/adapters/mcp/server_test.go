package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiWan1995/statemcp/pkg/adapters/memory"
	mcpadapter "github.com/TobiWan1995/statemcp/pkg/adapters/mcp"
	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/proxy"
	"github.com/TobiWan1995/statemcp/pkg/registry"
	"github.com/TobiWan1995/statemcp/pkg/session"
)

// newsroomServer is a two-stage editorial flow. Drafting binds the compose
// tool, an outline resource and an intro prompt; composing moves the session
// to reviewing, which binds the approve tool, a checklist resource and a
// summary prompt. Approving concludes the session. Each stage binds its own
// artifacts of all three classes so listing leaks are visible per class.
func newsroomServer(t *testing.T) *mcpadapter.Server {
	t.Helper()

	machine, err := automaton.NewBuilder().
		DefineState("drafting", automaton.Initial()).
		OnTool("compose").
		OnSuccess("reviewing").
		BuildEdge().
		OnResource("doc://drafts/outline").
		OnSuccess("drafting").
		BuildEdge().
		OnPrompt("draft_intro").
		OnSuccess("drafting").
		BuildEdge().
		BuildState().
		DefineState("reviewing").
		OnTool("approve").
		OnSuccess("published", automaton.Terminal()).
		BuildEdge().
		OnResource("doc://review/checklist").
		OnSuccess("reviewing").
		BuildEdge().
		OnPrompt("review_summary").
		OnSuccess("reviewing").
		BuildEdge().
		BuildState().
		DefineState("published").
		BuildState().
		Build()
	require.NoError(t, err)

	catalog := registry.NewCatalog()
	catalog.Tools.Register(domain.Tool{Name: "compose", Description: "write the article"},
		func(ctx context.Context, args map[string]any) (any, error) { return "drafted", nil })
	catalog.Tools.Register(domain.Tool{Name: "approve", Description: "sign off"},
		func(ctx context.Context, args map[string]any) (any, error) { return "approved", nil })
	catalog.Resources.Register(domain.Resource{URI: "doc://drafts/outline", Name: "outline"},
		func(ctx context.Context) (*domain.ResourceContents, error) {
			return &domain.ResourceContents{URI: "doc://drafts/outline", Text: "1. lede"}, nil
		})
	catalog.Resources.Register(domain.Resource{URI: "doc://review/checklist", Name: "checklist"},
		func(ctx context.Context) (*domain.ResourceContents, error) {
			return &domain.ResourceContents{URI: "doc://review/checklist", Text: "facts checked"}, nil
		})
	catalog.Prompts.Register(domain.Prompt{Name: "draft_intro"},
		func(ctx context.Context, args map[string]string) (*domain.PromptResult, error) {
			return &domain.PromptResult{Messages: []domain.PromptMessage{
				{Role: domain.RoleUser, Text: "write an opening paragraph"},
			}}, nil
		})
	catalog.Prompts.Register(domain.Prompt{Name: "review_summary"},
		func(ctx context.Context, args map[string]string) (*domain.PromptResult, error) {
			return &domain.PromptResult{Messages: []domain.PromptMessage{
				{Role: domain.RoleUser, Text: "summarize the review"},
			}}, nil
		})

	tracker := session.NewTracker(machine, memory.New())
	t.Cleanup(tracker.Stop)
	tools := proxy.NewToolProxy(machine, tracker, catalog.Tools)
	resources := proxy.NewResourceProxy(machine, tracker, catalog.Resources)
	prompts := proxy.NewPromptProxy(machine, tracker, catalog.Prompts)

	srv, err := mcpadapter.NewServer("newsroom", "0.0.1", catalog, tracker, tools, resources, prompts)
	require.NoError(t, err)
	return srv
}

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// rpc drives one request through the server without a transport, the way an
// embedding caller would, and decodes the JSON-RPC envelope.
func rpc(t *testing.T, srv *mcpadapter.Server, method string, params any) rpcReply {
	t.Helper()
	request := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		request["params"] = params
	}
	raw, err := json.Marshal(request)
	require.NoError(t, err)

	msg := srv.HandleMessage(context.Background(), raw)
	require.NotNil(t, msg)
	out, err := json.Marshal(msg)
	require.NoError(t, err)

	var reply rpcReply
	require.NoError(t, json.Unmarshal(out, &reply))
	return reply
}

func listedTools(t *testing.T, srv *mcpadapter.Server) []string {
	t.Helper()
	reply := rpc(t, srv, "tools/list", nil)
	require.Nil(t, reply.Error)
	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func listedResources(t *testing.T, srv *mcpadapter.Server) []string {
	t.Helper()
	reply := rpc(t, srv, "resources/list", nil)
	require.Nil(t, reply.Error)
	var result struct {
		Resources []struct {
			URI string `json:"uri"`
		} `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	uris := make([]string, 0, len(result.Resources))
	for _, resource := range result.Resources {
		uris = append(uris, resource.URI)
	}
	return uris
}

func listedPrompts(t *testing.T, srv *mcpadapter.Server) []string {
	t.Helper()
	reply := rpc(t, srv, "prompts/list", nil)
	require.Nil(t, reply.Error)
	var result struct {
		Prompts []struct {
			Name string `json:"name"`
		} `json:"prompts"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	names := make([]string, 0, len(result.Prompts))
	for _, prompt := range result.Prompts {
		names = append(names, prompt.Name)
	}
	return names
}

func callTool(t *testing.T, srv *mcpadapter.Server, name string) (text string, isError bool) {
	t.Helper()
	reply := rpc(t, srv, "tools/call", map[string]any{"name": name, "arguments": map[string]any{}})
	require.Nil(t, reply.Error)
	var result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	require.NotEmpty(t, result.Content)
	return result.Content[0].Text, result.IsError
}

func TestServerListsFollowCurrentState(t *testing.T) {
	srv := newsroomServer(t)

	assert.Equal(t, []string{"compose"}, listedTools(t, srv))
	assert.Equal(t, []string{"doc://drafts/outline"}, listedResources(t, srv))
	assert.Equal(t, []string{"draft_intro"}, listedPrompts(t, srv))

	text, isError := callTool(t, srv, "compose")
	require.False(t, isError)
	assert.Equal(t, "drafted", text)

	assert.Equal(t, []string{"approve"}, listedTools(t, srv))
	assert.Equal(t, []string{"doc://review/checklist"}, listedResources(t, srv))
	assert.Equal(t, []string{"review_summary"}, listedPrompts(t, srv))
}

func TestServerGateRejectionIsToolError(t *testing.T) {
	srv := newsroomServer(t)

	// "approve" belongs to reviewing; in drafting the gate rejects it as a
	// tool error result, not a protocol failure, and the session holds.
	text, isError := callTool(t, srv, "approve")
	assert.True(t, isError)
	assert.Contains(t, text, "not available")

	assert.Equal(t, []string{"compose"}, listedTools(t, srv))
}

func TestServerReadResourceIsGated(t *testing.T) {
	srv := newsroomServer(t)

	reply := rpc(t, srv, "resources/read", map[string]any{"uri": "doc://drafts/outline"})
	require.Nil(t, reply.Error)
	var result struct {
		Contents []struct {
			URI  string `json:"uri"`
			Text string `json:"text"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "1. lede", result.Contents[0].Text)

	// The checklist belongs to reviewing and is not served while drafting.
	reply = rpc(t, srv, "resources/read", map[string]any{"uri": "doc://review/checklist"})
	require.NotNil(t, reply.Error)
}

func TestServerGetPromptIsGated(t *testing.T) {
	srv := newsroomServer(t)

	reply := rpc(t, srv, "prompts/get", map[string]any{"name": "draft_intro"})
	require.Nil(t, reply.Error)
	var result struct {
		Messages []struct {
			Role    string `json:"role"`
			Content struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "write an opening paragraph", result.Messages[0].Content.Text)

	reply = rpc(t, srv, "prompts/get", map[string]any{"name": "review_summary"})
	require.NotNil(t, reply.Error)
}

func TestServerTerminalTransitionHidesEverything(t *testing.T) {
	srv := newsroomServer(t)

	_, isError := callTool(t, srv, "compose")
	require.False(t, isError)
	_, isError = callTool(t, srv, "approve")
	require.False(t, isError)

	assert.Empty(t, listedTools(t, srv))
	assert.Empty(t, listedResources(t, srv))
	assert.Empty(t, listedPrompts(t, srv))

	// A concluded session rejects calls as tool errors.
	text, isError := callTool(t, srv, "compose")
	assert.True(t, isError)
	assert.Contains(t, text, "concluded")
}

func TestServerFallbackSessionSpansMessages(t *testing.T) {
	srv := newsroomServer(t)

	// Messages without a client session share one fallback identity, so a
	// transition in one message is visible to the next.
	_, isError := callTool(t, srv, "compose")
	require.False(t, isError)
	assert.Equal(t, []string{"approve"}, listedTools(t, srv))

	text, isError := callTool(t, srv, "approve")
	require.False(t, isError)
	assert.Equal(t, "approved", text)
}
