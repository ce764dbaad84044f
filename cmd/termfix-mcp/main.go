// Command termfix-mcp is an MCP stdio server that exposes the termfixd
// HTTP API as tools, so MCP-speaking agents can read terminal history
// and drive the quick-fix pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apiTypes "github.com/termfix/termfix/pkg/api"
)

const defaultDaemonURL = "http://127.0.0.1:4160"

// DaemonClient talks to a running termfixd instance.
type DaemonClient struct {
	baseURL string
	http    *http.Client
}

func NewDaemonClient() *DaemonClient {
	baseURL := os.Getenv("TERMFIX_URL")
	if baseURL == "" {
		baseURL = defaultDaemonURL
	}
	return &DaemonClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *DaemonClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *DaemonClient) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *DaemonClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = strings.NewReader(string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("termfixd returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type ListTerminalsArgs struct{}

type GetOutputArgs struct {
	Handle   string `json:"handle" jsonschema:"terminal handle"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema:"truncate to at most this many trailing characters"`
}

type GetLastCommandArgs struct {
	Handle string `json:"handle" jsonschema:"terminal handle"`
}

type SuggestFixArgs struct {
	Handle string `json:"handle" jsonschema:"terminal handle with a pending failure match"`
}

type ApplyFixArgs struct {
	Handle    string `json:"handle" jsonschema:"terminal handle to apply the fix in"`
	RequestID string `json:"request_id,omitempty" jsonschema:"fix request the suggestion came from"`
	Command   string `json:"command" jsonschema:"suggested command to apply"`
	Relevance string `json:"relevance,omitempty" jsonschema:"suggestion relevance: high, medium, or low"`
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// FormatSuggestions renders a suggest response for tool output.
func FormatSuggestions(resp apiTypes.SuggestResponse) string {
	if len(resp.Suggestions) == 0 {
		return "No suggestions."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Request %s:\n", resp.RequestID)
	for i, s := range resp.Suggestions {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, s.Relevance, s.Command)
		if s.Description != "" {
			fmt.Fprintf(&b, " - %s", s.Description)
		}
		b.WriteByte('\n')
	}
	if len(resp.Missing) > 0 {
		fmt.Fprintf(&b, "Missing files: %s\n", strings.Join(resp.Missing, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func registerTools(server *mcp.Server, client *DaemonClient) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_terminals",
		Description: "List tracked terminals with their buffered chunk counts and last commands",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListTerminalsArgs) (*mcp.CallToolResult, any, error) {
		var resp apiTypes.TerminalListResponse
		if err := client.get(ctx, "/api/v1/terminals", &resp); err != nil {
			return nil, nil, err
		}
		if len(resp.Terminals) == 0 {
			return textResult("No terminals tracked."), nil, nil
		}
		var b strings.Builder
		for _, term := range resp.Terminals {
			fmt.Fprintf(&b, "%s: %d chunks", term.Handle, term.ChunkCount)
			if term.LastCommand != "" {
				fmt.Fprintf(&b, ", last command %q", term.LastCommand)
			}
			b.WriteByte('\n')
		}
		return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_terminal_output",
		Description: "Get the recent output of a terminal with ANSI escape sequences removed",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetOutputArgs) (*mcp.CallToolResult, any, error) {
		path := "/api/v1/terminals/" + url.PathEscape(args.Handle) + "/output"
		if args.MaxChars > 0 {
			path += "?max_chars=" + strconv.Itoa(args.MaxChars)
		}
		var resp apiTypes.JoinedOutputResponse
		if err := client.get(ctx, path, &resp); err != nil {
			return nil, nil, err
		}
		return textResult(resp.Output), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_last_command",
		Description: "Get the most recent completed command of a terminal, with exit code and output",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetLastCommandArgs) (*mcp.CallToolResult, any, error) {
		var resp apiTypes.LastCommandResponse
		if err := client.get(ctx, "/api/v1/terminals/"+url.PathEscape(args.Handle)+"/last-command", &resp); err != nil {
			return nil, nil, err
		}
		text := resp.CommandLine
		if resp.ExitCode != nil {
			text += fmt.Sprintf(" (exit %d)", *resp.ExitCode)
		}
		if resp.Output != "" {
			text += "\n" + resp.Output
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "suggest_fix",
		Description: "Request AI fix suggestions for the terminal's most recent matched failure",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SuggestFixArgs) (*mcp.CallToolResult, any, error) {
		var resp apiTypes.SuggestResponse
		if err := client.post(ctx, "/api/v1/terminals/"+url.PathEscape(args.Handle)+"/quickfix", nil, &resp); err != nil {
			return nil, nil, err
		}
		return textResult(FormatSuggestions(resp)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_fix",
		Description: "Apply a suggested command to the terminal; commands with {placeholders} are inserted, not run",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ApplyFixArgs) (*mcp.CallToolResult, any, error) {
		body := apiTypes.ApplyRequest{
			RequestID: args.RequestID,
			Suggestion: apiTypes.Suggestion{
				Command:   args.Command,
				Relevance: args.Relevance,
			},
		}
		var resp apiTypes.ApplyResponse
		if err := client.post(ctx, "/api/v1/terminals/"+url.PathEscape(args.Handle)+"/quickfix/apply", body, &resp); err != nil {
			return nil, nil, err
		}
		return textResult(fmt.Sprintf("%s: %s", resp.Action, resp.Command)), nil, nil
	})
}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "termfix",
		Version: "1.0.0",
	}, nil)

	registerTools(server, NewDaemonClient())

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("mcp server: %v", err)
	}
}
