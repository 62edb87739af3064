package providers

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/conductorhq/conductor/internal/llmgw"
	"github.com/conductorhq/conductor/pkg/models"
)

// BedrockConfig holds configuration for the AWS Bedrock provider.
type BedrockConfig struct {
	Region       string
	DefaultModel string
}

// BedrockProvider implements llmgw.Provider over Bedrock's Converse API
// (non-streaming), grounded on the teacher's BedrockProvider but using
// Converse rather than ConverseStream since the gateway contract is a
// single round trip.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// NewBedrockProvider loads the default AWS config chain for the given
// region and constructs a BedrockProvider.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: model,
	}, nil
}

func (p *BedrockProvider) Name() string        { return "bedrock" }
func (p *BedrockProvider) SupportsTools() bool { return true }

func (p *BedrockProvider) Ask(ctx context.Context, req llmgw.AskRequest) (llmgw.AssistantMessage, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return llmgw.AssistantMessage{}, fmt.Errorf("bedrock: %w", err)
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  &model,
		Messages: messages,
	}
	if req.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if len(req.Tools) > 0 {
		toolConfig, err := p.convertTools(req.Tools)
		if err != nil {
			return llmgw.AssistantMessage{}, fmt.Errorf("bedrock: %w", err)
		}
		in.ToolConfig = toolConfig
	}

	out, err := p.client.Converse(ctx, in)
	if err != nil {
		return llmgw.AssistantMessage{}, fmt.Errorf("bedrock: converse failed: %w", err)
	}

	return p.convertResponse(out), nil
}

func (p *BedrockProvider) convertMessages(msgs []models.Message) ([]types.Message, error) {
	var out []types.Message
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			continue
		}
		var blocks []types.ContentBlock
		if m.Content != "" {
			blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Content})
		}
		if m.Role == models.RoleTool {
			blocks = append(blocks, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: &m.ToolCallID,
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: m.Content}},
				},
			})
		}
		for _, tc := range m.ToolCalls {
			var input map[string]any
			if len(tc.Input) > 0 {
				if err := json.Unmarshal(tc.Input, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call input: %w", err)
				}
			}
			blocks = append(blocks, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: &tc.ID,
					Name:      &tc.Name,
					Input:     document.NewLazyDocument(input),
				},
			})
		}
		role := types.ConversationRoleUser
		if m.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}
	return out, nil
}

func (p *BedrockProvider) convertTools(tools []llmgw.ToolSchema) (*types.ToolConfiguration, error) {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        &t.Name,
				Description: &t.Description,
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(t.Parameters)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}, nil
}

func (p *BedrockProvider) convertResponse(out *bedrockruntime.ConverseOutput) llmgw.AssistantMessage {
	result := llmgw.AssistantMessage{}
	if out.Usage != nil {
		result.InputTokens = int(*out.Usage.InputTokens)
		result.OutputTokens = int(*out.Usage.OutputTokens)
	}
	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return result
	}
	for _, block := range msgOutput.Value.Content {
		switch v := block.(type) {
		case *types.ContentBlockMemberText:
			result.Content += v.Value
		case *types.ContentBlockMemberToolUse:
			var input map[string]any
			_ = v.Value.Input.UnmarshalSmithyDocument(&input)
			raw, _ := json.Marshal(input)
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:    *v.Value.ToolUseId,
				Name:  *v.Value.Name,
				Input: raw,
			})
		}
	}
	return result
}
