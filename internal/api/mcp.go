package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/solace/internal/intent"
)

const recentInteractions = 10

// NewMCPServer creates an MCP server exposing the respond and classify tools
// and read-only views of saved reminders, memory aids and recent turns.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"solace",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("solace: supportive replies for people living with memory loss, plus the reminders and memory aids they have saved."),
		server.WithRecovery(),
	)

	emotions, intents := intent.Categories()

	// Tools
	s.AddTool(
		mcp.NewTool("respond",
			mcp.WithDescription("Answer a user utterance. Local commands (reminders, memory aids, emergency calls) are handled first; otherwise the hosted providers and the general-purpose model are tried in order."),
			mcp.WithString("text", mcp.Description("What the user said"), mcp.Required()),
			mcp.WithString("language", mcp.Description("Conversation language: en or fr (detected when omitted)")),
			mcp.WithString("session_id", mcp.Description("Conversation id; a new one is assigned when omitted")),
			mcp.WithBoolean("care_mode", mcp.Description("Mark the turn as needing extra care")),
			mcp.WithString("personality", mcp.Description("Override the persona personality for this turn")),
			mcp.WithString("model_preference", mcp.Description("primary, secondary or openai")),
		),
		mcpRespond(deps),
	)

	s.AddTool(
		mcp.NewTool("classify",
			mcp.WithDescription(fmt.Sprintf(
				"Detect the intent and emotion of an utterance using keyword tables. Emotions: %s, neutral. Intents: %s, chit_chat.",
				strings.Join(emotions, ", "), strings.Join(intents, ", "),
			)),
			mcp.WithString("text", mcp.Description("Text to classify"), mcp.Required()),
		),
		mcpClassify,
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"care://reminders",
			"Reminders",
			mcp.WithResourceDescription("Saved reminders, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceReminders(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"care://memory-aids",
			"Memory Aids",
			mcp.WithResourceDescription("Saved people and facts, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceMemoryAids(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"care://recent",
			"Recent Interactions",
			mcp.WithResourceDescription("Last 10 logged turns"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpRespond(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		resp, err := respond(ctx, deps, RespondRequest{
			Text:            text,
			Language:        req.GetString("language", ""),
			SessionID:       req.GetString("session_id", ""),
			CareMode:        req.GetBool("care_mode", false),
			Personality:     req.GetString("personality", ""),
			ModelPreference: req.GetString("model_preference", ""),
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcpError("text is required"), nil
	}

	b, err := json.Marshal(intent.Classify(text))
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpResourceReminders(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		reminders, err := deps.Store.ListReminders(50)
		if err != nil {
			return nil, fmt.Errorf("failed to list reminders: %w", err)
		}
		return jsonResource(req.Params.URI, reminders)
	}
}

func mcpResourceMemoryAids(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		aids, err := deps.Store.ListMemoryAids(50)
		if err != nil {
			return nil, fmt.Errorf("failed to list memory aids: %w", err)
		}
		return jsonResource(req.Params.URI, aids)
	}
}

func mcpResourceRecent(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		interactions, err := deps.Store.ListInteractions(recentInteractions, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent interactions: %w", err)
		}

		type interactionSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			SessionID string `json:"session_id"`
			Input     string `json:"input"`
			Provider  string `json:"provider"`
			Emotion   string `json:"emotion"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			summaries[i] = interactionSummary{
				ID:        ix.ID,
				CreatedAt: ix.CreatedAt.Format(time.RFC3339),
				SessionID: ix.SessionID,
				Input:     truncate(ix.Input, 200),
				Provider:  ix.Provider,
				Emotion:   ix.Emotion,
			}
		}
		return jsonResource(req.Params.URI, summaries)
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
