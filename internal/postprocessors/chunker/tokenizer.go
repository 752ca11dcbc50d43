package chunker

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer splits text into budget units with byte spans.
type Tokenizer interface {
	// Name identifies the tokenizer in configuration.
	Name() string

	// Split returns the [start, end) byte range of every unit in text.
	Split(text string) [][2]int
}

// WordTokenizer counts whitespace-separated words.
type WordTokenizer struct{}

// Name returns "words".
func (WordTokenizer) Name() string {
	return "words"
}

// Split returns the span of each run of non-space runes.
func (WordTokenizer) Split(text string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, [2]int{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}

// TiktokenTokenizer counts BPE tokens of an OpenAI encoding.
type TiktokenTokenizer struct {
	enc      *tiktoken.Tiktoken
	encoding string
}

// NewTiktokenTokenizer loads the named encoding (e.g. "cl100k_base").
// The encoding file is fetched on first use unless cached locally.
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("get tokenizer %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc, encoding: encoding}, nil
}

// Name returns "tiktoken".
func (t *TiktokenTokenizer) Name() string {
	return "tiktoken"
}

// Split decodes each token back to its bytes to recover spans.
// Tokens that end inside a multi-byte rune are merged with the next token
// so that spans always fall on rune boundaries.
func (t *TiktokenTokenizer) Split(text string) [][2]int {
	tokens := t.enc.Encode(text, nil, nil)
	spans := make([][2]int, 0, len(tokens))
	pos, start := 0, 0
	for _, tok := range tokens {
		pos += len(t.enc.Decode([]int{tok}))
		if pos > len(text) {
			pos = len(text)
		}
		if pos < len(text) && !utf8.RuneStart(text[pos]) {
			continue
		}
		if pos > start {
			spans = append(spans, [2]int{start, pos})
		}
		start = pos
	}
	if start < len(text) {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}
