package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
)

// SimpleText passes plain text and Markdown through and fences JSON.
type SimpleText struct{}

func NewSimpleText() *SimpleText { return &SimpleText{} }

func (p *SimpleText) Name() string { return "simple-text" }

func (p *SimpleText) CanParse(mimeType, _ string) bool {
	switch baseMime(mimeType) {
	case MimeText, MimeMarkdown, MimeJSON:
		return true
	}
	return false
}

func (p *SimpleText) Parse(_ context.Context, in Input) (*Output, error) {
	text := string(in.Document.Content)

	markdown := text
	if baseMime(in.Document.MimeType) == MimeJSON {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, in.Document.Content, "", "  "); err == nil {
			markdown = "```json\n" + pretty.String() + "\n```"
		}
	}

	return &Output{
		MarkdownContent: markdown,
		Parser:          p.Name(),
		Metadata: map[string]interface{}{
			"wordCount": len(strings.Fields(text)),
		},
	}, nil
}
