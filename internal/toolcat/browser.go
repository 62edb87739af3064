package toolcat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/conductorhq/conductor/internal/sandboxgw"
	"github.com/conductorhq/conductor/internal/toolkit"
)

// BrowserTool drives the sandbox's own headless browser session over CDP
// (spec §4.12), grounded on internal/tools/browser/browser.go's single
// "action" dispatch but reconnecting through the sandbox gateway's
// get_cdp_url instead of managing a local browser pool — the browser
// process itself lives in the sandbox, not in this process.
type BrowserTool struct {
	gateway sandboxgw.Gateway

	mu     sync.Mutex
	pw     *playwright.Playwright
	cdpURL string
	conn   playwright.Browser
	page   playwright.Page
}

// NewBrowserTool builds a BrowserTool over an already-constructed gateway.
func NewBrowserTool(gateway sandboxgw.Gateway) *BrowserTool {
	return &BrowserTool{gateway: gateway}
}

func (t *BrowserTool) Name() string { return "browser" }

func (t *BrowserTool) Functions() []toolkit.Function {
	return []toolkit.Function{
		{
			Name:        "browser_navigate",
			Description: "Navigate the sandbox's browser session to a URL.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"url": {"type": "string"}},
				"required": ["url"]
			}`),
		},
		{
			Name:        "browser_click",
			Description: "Click the first element matching a CSS selector.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"selector": {"type": "string"}},
				"required": ["selector"]
			}`),
		},
		{
			Name:        "browser_type",
			Description: "Type text into the first element matching a CSS selector.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"selector": {"type": "string"}, "text": {"type": "string"}},
				"required": ["selector", "text"]
			}`),
		},
		{
			Name:        "browser_screenshot",
			Description: "Capture a base64-encoded PNG screenshot of the current page.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"full_page": {"type": "boolean"}}
			}`),
		},
		{
			Name:        "browser_extract_text",
			Description: "Extract the visible text content of the current page, or of one element if selector is given.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"selector": {"type": "string"}}
			}`),
		},
		{
			Name:        "browser_execute_js",
			Description: "Evaluate JavaScript in the current page and return its result.",
			SchemaJSON: json.RawMessage(`{
				"type": "object",
				"properties": {"script": {"type": "string"}},
				"required": ["script"]
			}`),
		},
	}
}

func (t *BrowserTool) Invoke(ctx context.Context, functionName string, arguments json.RawMessage) (toolkit.ToolResult, error) {
	page, err := t.ensurePage(ctx)
	if err != nil {
		return toolkit.ToolResult{}, err
	}

	var args struct {
		URL      string `json:"url"`
		Selector string `json:"selector"`
		Text     string `json:"text"`
		Script   string `json:"script"`
		FullPage bool   `json:"full_page"`
	}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return toolkit.ToolResult{}, fmt.Errorf("toolcat: decode %s arguments: %w", functionName, err)
		}
	}

	switch functionName {
	case "browser_navigate":
		if _, err := page.Goto(args.URL); err != nil {
			return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
		}
		return toolkit.ToolResult{Success: true, Message: "navigated to " + args.URL}, nil

	case "browser_click":
		if err := page.Locator(args.Selector).Click(); err != nil {
			return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
		}
		return toolkit.ToolResult{Success: true}, nil

	case "browser_type":
		if err := page.Locator(args.Selector).Fill(args.Text); err != nil {
			return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
		}
		return toolkit.ToolResult{Success: true}, nil

	case "browser_screenshot":
		shot, err := page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(args.FullPage)})
		if err != nil {
			return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
		}
		return toolkit.ToolResult{
			Success: true,
			Data:    map[string]any{"screenshot_base64": base64.StdEncoding.EncodeToString(shot)},
		}, nil

	case "browser_extract_text":
		var (
			text string
			err  error
		)
		if args.Selector != "" {
			text, err = page.Locator(args.Selector).InnerText()
		} else {
			text, err = page.InnerText("body")
		}
		if err != nil {
			return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
		}
		return toolkit.ToolResult{Success: true, Data: map[string]any{"text": text}}, nil

	case "browser_execute_js":
		result, err := page.Evaluate(args.Script)
		if err != nil {
			return toolkit.ToolResult{Success: false, Message: err.Error()}, nil
		}
		return toolkit.ToolResult{Success: true, Data: map[string]any{"result": fmt.Sprintf("%v", result)}}, nil

	default:
		return toolkit.ToolResult{}, &toolkit.ErrToolNotFound{FunctionName: functionName}
	}
}

// ensurePage connects to the sandbox's CDP endpoint on first use, and
// reconnects if the sandbox handed out a new url since (e.g. after a
// restart). The connection is cached for the lifetime of this tool
// instance, matching internal/tools/browser/pool.go's one-connection-per-
// session intent but without a multi-instance pool, since each executor
// only ever drives one sandbox at a time.
func (t *BrowserTool) ensurePage(ctx context.Context) (playwright.Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cdpURL, err := t.gateway.GetCDPURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("toolcat: get cdp url: %w", err)
	}
	if t.page != nil && t.cdpURL == cdpURL {
		return t.page, nil
	}

	if t.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("toolcat: start playwright: %w", err)
		}
		t.pw = pw
	}
	if t.conn != nil {
		_ = t.conn.Close()
	}

	browser, err := t.pw.Chromium.ConnectOverCDP(cdpURL)
	if err != nil {
		return nil, fmt.Errorf("toolcat: connect over cdp: %w", err)
	}
	contexts := browser.Contexts()
	var page playwright.Page
	if len(contexts) > 0 && len(contexts[0].Pages()) > 0 {
		page = contexts[0].Pages()[0]
	} else {
		pwContext, err := browser.NewContext()
		if err != nil {
			return nil, fmt.Errorf("toolcat: new browser context: %w", err)
		}
		page, err = pwContext.NewPage()
		if err != nil {
			return nil, fmt.Errorf("toolcat: new page: %w", err)
		}
	}

	t.conn = browser
	t.page = page
	t.cdpURL = cdpURL
	return page, nil
}

// Close releases the browser connection and playwright driver, if started.
func (t *BrowserTool) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	if t.pw != nil {
		err := t.pw.Stop()
		t.pw = nil
		return err
	}
	return nil
}
