package backend

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

// CountTokens returns the cl100k_base token count of text, or -1 when the
// tokenizer is unavailable. The count is diagnostic only.
func CountTokens(text string) int {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if codecErr != nil {
		return -1
	}
	_, tokens, err := codec.Encode(text)
	if err != nil {
		return -1
	}
	return len(tokens)
}
