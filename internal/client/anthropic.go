package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"go.uber.org/zap"

	"github.com/ymhiroki/qchat/internal/convo"
	"github.com/ymhiroki/qchat/internal/log"
	"github.com/ymhiroki/qchat/internal/message"
)

const defaultMaxTokens = 8192

// Anthropic is the live StreamingClient backed by the Anthropic SDK.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates a live client. The SDK reads credentials from the
// standard environment variables.
func NewAnthropic(model string) *Anthropic {
	return &Anthropic{client: anthropic.NewClient(), model: model}
}

// SendMessage converts the snapshot into an Anthropic streaming request.
func (a *Anthropic) SendMessage(ctx context.Context, state convo.Snapshot) (SendMessageOutput, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: defaultMaxTokens,
		Messages:  convertHistory(state.History),
	}

	if contextText := state.ContextText(); contextText != "" {
		params.System = []anthropic.TextBlockParam{{Text: contextText}}
	}

	if len(state.ToolSpecs) > 0 {
		params.Tools = convertToolSpecs(state.ToolSpecs)
	}

	log.Logger().Debug("Sending conversation",
		zap.String("conversation_id", state.ConversationID),
		zap.Int("turns", len(state.History)))

	stream := a.client.Messages.NewStreaming(ctx, params)
	return &anthropicOutput{stream: stream}, nil
}

func convertHistory(history []message.Turn) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case message.RoleUser:
			var blocks []anthropic.ContentBlockParamUnion
			for _, result := range turn.ToolResults {
				content := ""
				for _, block := range result.Content {
					content += block.String()
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(
					result.ToolUseID, content, result.Status == message.ToolResultError))
			}
			if turn.Content != "" || len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(turn.Content))
			}
			msgs = append(msgs, anthropic.NewUserMessage(blocks...))

		case message.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if turn.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(turn.Content))
			}
			for _, use := range turn.ToolUses {
				var input any
				if err := json.Unmarshal(use.Args, &input); err != nil || input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(use.ID, input, use.Name))
			}
			msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
		}
	}
	return msgs
}

func convertToolSpecs(specs []message.ToolSpec) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		inputSchema := anthropic.ToolInputSchemaParam{}
		var schema map[string]any
		if err := json.Unmarshal(spec.InputSchema, &schema); err == nil {
			if properties, ok := schema["properties"]; ok {
				inputSchema.Properties = properties
			}
			if required, ok := schema["required"].([]any); ok {
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return tools
}

// anthropicOutput adapts the SDK event stream to wire events.
type anthropicOutput struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]

	requestID   string
	toolID      string
	toolName    string
	inToolBlock bool
}

func (o *anthropicOutput) RequestID() string {
	return o.requestID
}

func (o *anthropicOutput) Recv(ctx context.Context) (*StreamEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !o.stream.Next() {
			if err := o.stream.Err(); err != nil {
				return nil, wrapAnthropicErr(err)
			}
			return nil, nil
		}

		event := o.stream.Current()
		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			// The message id doubles as the correlation id for error reports.
			o.requestID = start.Message.ID
			return &StreamEvent{Type: EventMetadata, MessageID: start.Message.ID}, nil

		case "content_block_start":
			block := event.AsContentBlockStart()
			if block.ContentBlock.Type == "tool_use" {
				o.toolID = block.ContentBlock.ID
				o.toolName = block.ContentBlock.Name
				o.inToolBlock = true
				return &StreamEvent{Type: EventToolUse, ToolUseID: o.toolID, Name: o.toolName}, nil
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			switch delta.Delta.Type {
			case "text_delta":
				if delta.Delta.Text != "" {
					return &StreamEvent{Type: EventAssistantResponse, Content: delta.Delta.Text}, nil
				}
			case "input_json_delta":
				if delta.Delta.PartialJSON != "" {
					partial := delta.Delta.PartialJSON
					return &StreamEvent{Type: EventToolUse, ToolUseID: o.toolID, Name: o.toolName, Input: &partial}, nil
				}
			}

		case "content_block_stop":
			if o.inToolBlock {
				o.inToolBlock = false
				return &StreamEvent{Type: EventToolUse, ToolUseID: o.toolID, Name: o.toolName, Stop: true}, nil
			}
		}
	}
}

// wrapAnthropicErr maps SDK quota errors to the distinguished variant the
// driver prints verbatim.
func wrapAnthropicErr(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests {
		return &QuotaBreachError{Message: apierr.Error()}
	}
	return err
}
