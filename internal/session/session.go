package session

import (
	"encoding/json"
	"fmt"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message represents a single transcript entry
type Message struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// UserMessage returns a message sent by the user.
func UserMessage(text string) Message {
	return Message{Sender: SenderUser, Text: text}
}

// AssistantMessage returns a message sent by the assistant.
func AssistantMessage(text string) Message {
	return Message{Sender: SenderAssistant, Text: text}
}

// Transcript is the ordered, append-only list of messages shown to the user.
type Transcript struct {
	messages []Message
}

// NewTranscript returns a transcript holding a copy of messages.
func NewTranscript(messages ...Message) Transcript {
	return Transcript{messages: append([]Message(nil), messages...)}
}

// Append returns a new transcript with m at the end. The receiver is left
// untouched, so earlier snapshots never observe later messages.
func (t Transcript) Append(m Message) Transcript {
	out := make([]Message, len(t.messages), len(t.messages)+1)
	copy(out, t.messages)
	return Transcript{messages: append(out, m)}
}

// Len returns the number of messages.
func (t Transcript) Len() int {
	return len(t.messages)
}

// Messages returns a copy of the messages in order.
func (t Transcript) Messages() []Message {
	return append([]Message{}, t.messages...)
}

// Last returns the final message, if any.
func (t Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// MarshalTranscript serializes the whole transcript as a JSON array.
func MarshalTranscript(t Transcript) ([]byte, error) {
	data, err := json.Marshal(t.Messages())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return data, nil
}

// UnmarshalTranscript parses a JSON array of messages. Empty input and
// JSON null both yield an empty transcript.
func UnmarshalTranscript(data []byte) (Transcript, error) {
	if len(data) == 0 {
		return Transcript{}, nil
	}
	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return Transcript{}, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	for i, m := range messages {
		if m.Sender != SenderUser && m.Sender != SenderAssistant {
			return Transcript{}, fmt.Errorf("message %d has unknown sender %q", i, m.Sender)
		}
	}
	return Transcript{messages: messages}, nil
}
