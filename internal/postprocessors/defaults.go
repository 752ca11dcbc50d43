package postprocessors

import (
	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/logger"
	"github.com/custodia-labs/precedent/internal/postprocessors/chunker"
	"github.com/custodia-labs/precedent/internal/postprocessors/htmlbody"
)

// tiktokenEncoding is used when the chunker is configured for BPE tokens.
const tiktokenEncoding = "cl100k_base"

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("htmlbody", buildHTMLBody)
	r.Register("chunker", buildChunker)
}

func buildHTMLBody(_ map[string]any) (driven.PostProcessor, error) {
	return htmlbody.New(), nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - max_tokens (int): Budget per chunk (default: 500)
//   - overlap (int): Tokens shared by consecutive chunks (default: 50)
//   - tokenizer (string): "words" (default) or "tiktoken"
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size := getIntFromConfig(cfg, "max_tokens"); size > 0 {
			opts = append(opts, chunker.WithMaxTokens(size))
		}
		if _, ok := cfg["overlap"]; ok {
			opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
		}
		if name, _ := cfg["tokenizer"].(string); name == string(domain.TokenizerTiktoken) {
			tok, err := chunker.NewTiktokenTokenizer(tiktokenEncoding)
			if err != nil {
				logger.Warn("chunker: %v, counting words instead", err)
			} else {
				opts = append(opts, chunker.WithTokenizer(tok))
			}
		}
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
