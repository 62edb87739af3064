package toolcat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/conductorhq/conductor/internal/toolkit"
)

// SearchConfig controls the optional search tool (spec §4.5: "if
// configured"). A zero-value config still enables web_fetch; SearchURL
// enables web_search against a pluggable provider endpoint.
type SearchConfig struct {
	SearchURL string
	MaxChars  int
}

// SearchTool fetches and extracts readable page content, and optionally
// proxies web_search to a configured provider. Grounded on
// internal/tools/websearch/extract.go's SSRF guard and readable-text
// extraction, reimplemented over golang.org/x/net/html's tokenizer instead
// of hand-rolled tag stripping — the pack otherwise supplies no dedicated
// search-client library, so this one concern is the spec's named exception
// to "avoid stdlib where a pack library exists" (SPEC_FULL §4.12).
type SearchTool struct {
	config SearchConfig
	client *http.Client
}

// NewSearchTool builds a SearchTool from cfg.
func NewSearchTool(cfg SearchConfig) *SearchTool {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 10000
	}
	cfg.MaxChars = maxChars
	return &SearchTool{config: cfg, client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Functions() []toolkit.Function {
	return []toolkit.Function{
		{
			Name:        "web_fetch",
			Description: "Fetch a URL and extract its readable text content.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"url": {"type": "string"}},
				"required": ["url"]
			}`),
		},
		{
			Name:        "web_search",
			Description: "Search the web via the configured search provider.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"query": {"type": "string"}},
				"required": ["query"]
			}`),
		},
	}
}

func (t *SearchTool) Invoke(ctx context.Context, functionName string, arguments json.RawMessage) (toolkit.ToolResult, error) {
	switch functionName {
	case "web_fetch":
		var args struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(arguments, &args); err != nil {
			return toolkit.ToolResult{}, fmt.Errorf("toolcat: decode web_fetch arguments: %w", err)
		}
		return t.fetch(ctx, args.URL)

	case "web_search":
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(arguments, &args); err != nil {
			return toolkit.ToolResult{}, fmt.Errorf("toolcat: decode web_search arguments: %w", err)
		}
		return t.search(ctx, args.Query)

	default:
		return toolkit.ToolResult{}, &toolkit.ErrToolNotFound{FunctionName: functionName}
	}
}

func (t *SearchTool) fetch(ctx context.Context, targetURL string) (toolkit.ToolResult, error) {
	if err := validateURLForSSRF(targetURL); err != nil {
		return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
	}

	text := extractReadableText(string(body))
	if len(text) > t.config.MaxChars {
		text = text[:t.config.MaxChars]
	}
	return toolkit.ToolResult{Success: true, Data: map[string]any{"text": text}}, nil
}

func (t *SearchTool) search(ctx context.Context, query string) (toolkit.ToolResult, error) {
	if t.config.SearchURL == "" {
		return toolkit.ToolResult{Success: false, Message: "web_search is not configured"}, nil
	}

	endpoint := t.config.SearchURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	var results any
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return toolkit.ToolResult{Success: false, Message: "invalid search provider response"}, nil
	}
	return toolkit.ToolResult{Success: true, Data: map[string]any{"results": results}}, nil
}

// skippedTags never contribute to extracted text.
var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "head": true,
}

// extractReadableText walks an HTML document with golang.org/x/net/html's
// tokenizer, concatenating text nodes outside script/style/head elements.
func extractReadableText(document string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(document))
	var sb strings.Builder
	var skipDepth int

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if skippedTags[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skippedTags[string(name)] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

// isPrivateOrReservedIP mirrors internal/tools/websearch/extract.go's SSRF
// guard: reject loopback, link-local, private, unspecified, multicast, and
// the cloud metadata address.
func isPrivateOrReservedIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	return ip.Equal(net.ParseIP("169.254.169.254"))
}

func validateURLForSSRF(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got: %s", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("url must have a hostname")
	}
	lowerHost := strings.ToLower(hostname)
	if lowerHost == "localhost" || strings.HasSuffix(lowerHost, ".localhost") {
		return fmt.Errorf("localhost urls are not allowed")
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if isPrivateOrReservedIP(ip) {
			return fmt.Errorf("url resolves to a private/reserved ip address")
		}
	}
	return nil
}
