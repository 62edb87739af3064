package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/conductorhq/conductor/internal/llmgw"
	"github.com/conductorhq/conductor/pkg/models"
)

// GoogleConfig holds configuration for the Gemini backend.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
}

// GoogleProvider implements llmgw.Provider against the Gemini API via
// google.golang.org/genai, grounded on the teacher's GoogleProvider
// (internal/agent/providers/google.go) but collapsed to a single
// non-streaming Models.GenerateContent call, the same streaming-to-ask
// reshaping applied to AnthropicProvider and OpenAIProvider.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
}

// NewGoogleProvider constructs a GoogleProvider against the Gemini API
// backend, applying the teacher's same default model.
func NewGoogleProvider(ctx context.Context, config GoogleConfig) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}

	return &GoogleProvider{client: client, defaultModel: config.DefaultModel}, nil
}

func (p *GoogleProvider) Name() string        { return "google" }
func (p *GoogleProvider) SupportsTools() bool { return true }

// Ask sends req as a single non-streaming Models.GenerateContent call and
// normalizes the response into an AssistantMessage.
func (p *GoogleProvider) Ask(ctx context.Context, req llmgw.AskRequest) (llmgw.AssistantMessage, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	contents := p.convertMessages(req.Messages)
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		config.Tools = p.convertTools(req.Tools)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return llmgw.AssistantMessage{}, fmt.Errorf("google: request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llmgw.AssistantMessage{}, fmt.Errorf("google: empty response")
	}

	return p.convertResponse(resp), nil
}

// convertMessages maps this system's roles onto Gemini's two-role content
// model: system messages are dropped here (handled via SystemInstruction in
// buildConfig) and tool results surface as user-side FunctionResponse parts,
// the same mapping the teacher's convertMessages applies.
func (p *GoogleProvider) convertMessages(msgs []models.Message) []*genai.Content {
	var out []*genai.Content
	for _, m := range msgs {
		content := &genai.Content{}
		switch m.Role {
		case models.RoleSystem:
			continue
		case models.RoleAssistant:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if m.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
		}
		if m.Role == models.RoleTool {
			var response map[string]any
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]any{"result": m.Content}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: toolNameForCallID(m.ToolCallID, msgs), Response: response},
			})
		}
		for _, tc := range m.ToolCalls {
			var args map[string]any
			if len(tc.Input) > 0 {
				_ = json.Unmarshal(tc.Input, &args)
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args},
			})
		}

		if len(content.Parts) > 0 {
			out = append(out, content)
		}
	}
	return out
}

func (p *GoogleProvider) convertTools(tools []llmgw.ToolSchema) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGeminiSchema(t.Parameters),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiSchema walks a JSON-schema-shaped map into Gemini's typed Schema,
// grounded on the teacher's internal/agent/toolconv.ToGeminiSchema.
func toGeminiSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = toGeminiSchema(items)
	}
	return schema
}

func (p *GoogleProvider) convertResponse(resp *genai.GenerateContentResponse) llmgw.AssistantMessage {
	out := llmgw.AssistantMessage{}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			argsJSON, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				argsJSON = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:    fmt.Sprintf("call_%s", part.FunctionCall.Name),
				Name:  part.FunctionCall.Name,
				Input: argsJSON,
			})
		}
	}
	return out
}

// toolNameForCallID recovers the function name a tool result answers, since
// Gemini's FunctionResponse part is keyed by name rather than call ID — the
// same lookup the teacher's getToolNameFromID performs.
func toolNameForCallID(callID string, msgs []models.Message) string {
	for _, m := range msgs {
		for _, tc := range m.ToolCalls {
			if tc.ID == callID {
				return tc.Name
			}
		}
	}
	return ""
}
