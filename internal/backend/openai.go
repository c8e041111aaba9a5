package backend

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"
)

// Settings are the fixed parameters of every completion request.
type Settings struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Persona     string
}

// NewCompletionRequest builds the two-turn conversation sent upstream: the
// persona as the system turn and message verbatim as the user turn.
func NewCompletionRequest(s Settings, message string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.Persona},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
	}
}

// Reply is the decoded outcome of a successful completion call. It is
// either Recognized or Unrecognized.
type Reply interface {
	isReply()
}

// Recognized carries the reply text found at choices[0].message.content.
type Recognized struct {
	Text  string
	Usage *openai.Usage
}

// Unrecognized carries the parsed body when no reply text was found. Raw is
// the decoded JSON value, or the body as a string when it is not JSON.
type Unrecognized struct {
	Raw any
}

func (Recognized) isReply()   {}
func (Unrecognized) isReply() {}

type completionBody struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *openai.Usage `json:"usage"`
}

// DecodeReply inspects a success body once and classifies it.
func DecodeReply(body []byte) Reply {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Unrecognized{Raw: string(body)}
	}

	var cb completionBody
	if err := json.Unmarshal(body, &cb); err != nil {
		return Unrecognized{Raw: raw}
	}
	if len(cb.Choices) == 0 || cb.Choices[0].Message == nil || cb.Choices[0].Message.Content == nil {
		return Unrecognized{Raw: raw}
	}
	return Recognized{Text: *cb.Choices[0].Message.Content, Usage: cb.Usage}
}

// DefaultUpstreamError is used when an error body carries no message.
const DefaultUpstreamError = "AI service request failed."

// UpstreamErrorMessage extracts error.message from an error body.
func UpstreamErrorMessage(body []byte) string {
	var eb struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error == nil || eb.Error.Message == "" {
		return DefaultUpstreamError
	}
	return eb.Error.Message
}
