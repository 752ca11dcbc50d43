// Package htmlbody converts HTML message bodies to markdown before chunking.
package htmlbody

import (
	"context"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/logger"
)

var htmlTag = regexp.MustCompile(`(?i)<(html|body|div|p|br|table|span|a)\b`)

// Processor normalises HTML bodies. Plain text passes through unchanged.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates a new HTML body processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "htmlbody"
}

// Process rewrites pm.Text when the body is HTML.
// Conversion failures keep the original text.
func (p *Processor) Process(_ context.Context, pm *domain.ProcessedMessage) (*domain.ProcessedMessage, error) {
	msg := pm.Message
	if !IsHTML(msg) {
		return pm, nil
	}

	md, err := htmltomarkdown.ConvertString(msg.Body)
	if err != nil {
		logger.Warn("htmlbody: convert message %s: %v", msg.ID, err)
		return pm, nil
	}

	md = strings.TrimSpace(md)
	if msg.Subject != "" {
		md = msg.Subject + "\n" + md
	}
	pm.Text = md
	return pm, nil
}

// IsHTML reports whether the message body should be converted.
func IsHTML(msg *domain.Message) bool {
	if msg.ContentType == domain.ContentTypeHTML {
		return true
	}
	if msg.ContentType == domain.ContentTypePlain {
		return false
	}
	return htmlTag.MatchString(msg.Body)
}
