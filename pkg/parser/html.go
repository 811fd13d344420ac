package parser

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// HTML converts uploaded HTML pages to Markdown locally.
type HTML struct {
	converter *md.Converter
}

func NewHTML() *HTML {
	return &HTML{converter: md.NewConverter("", true, nil)}
}

func (p *HTML) Name() string { return "html" }

func (p *HTML) CanParse(mimeType, _ string) bool {
	return baseMime(mimeType) == MimeHTML
}

func (p *HTML) Parse(_ context.Context, in Input) (*Output, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(in.Document.Content))
	if err != nil {
		return nil, &ParseFailedError{Parser: p.Name(), Cause: err, Permanent: true}
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, iframe").Remove()

	body := doc.Find("body")
	html, err := body.Html()
	if err != nil || strings.TrimSpace(html) == "" {
		html, err = doc.Html()
		if err != nil {
			return nil, &ParseFailedError{Parser: p.Name(), Cause: err, Permanent: true}
		}
	}

	markdown, err := p.converter.ConvertString(html)
	if err != nil {
		return nil, &ParseFailedError{Parser: p.Name(), Cause: err, Permanent: true}
	}
	markdown = strings.TrimSpace(blankRuns.ReplaceAllString(markdown, "\n\n"))

	meta := map[string]interface{}{
		"wordCount": len(strings.Fields(body.Text())),
	}
	if title != "" {
		meta["title"] = title
	}

	return &Output{
		MarkdownContent: markdown,
		Parser:          p.Name(),
		Metadata:        meta,
	}, nil
}
