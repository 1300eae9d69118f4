package browse

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pagepilot/pagepilot/pkg/pagetext"
)

// GetPageTextTool extracts the page's full text content. HTML pages go
// through the DOM serializer; PDF documents through the PDF extractor.
type GetPageTextTool struct{}

// NewGetPageTextTool creates the get_page_text tool.
func NewGetPageTextTool() *GetPageTextTool { return &GetPageTextTool{} }

func (t *GetPageTextTool) Name() string { return "get_page_text" }

func (t *GetPageTextTool) Description() string {
	return "Extract the full text content of the current page. Works for HTML pages and PDF documents."
}

func (t *GetPageTextTool) Schema() map[string]interface{} {
	return baseSchema(map[string]interface{}{}, nil)
}

func (t *GetPageTextTool) Execute(ctx context.Context, env *Env, inv *Invocation) *Result {
	if blocked := checkGate(ctx, env, t.Name(), inv, nil); blocked != nil {
		return blocked
	}

	url, err := env.Session.URL(ctx)
	if err != nil {
		return errResult("failed to resolve current page URL: %v", err)
	}

	if strings.HasSuffix(strings.ToLower(strings.SplitN(url, "?", 2)[0]), ".pdf") {
		return t.extractPDF(ctx, env)
	}
	return t.extractHTML(ctx, env)
}

func (t *GetPageTextTool) extractHTML(ctx context.Context, env *Env) *Result {
	rawHTML, err := env.Session.OuterHTML(ctx)
	if err != nil {
		return errResult("failed to read page content: %v", err)
	}

	extracted, err := pagetext.ExtractHTML(rawHTML, env.MaxPageText)
	if err != nil {
		return errResult("failed to extract page text: %v", err)
	}

	var b strings.Builder
	if extracted.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", extracted.Title)
	}
	if extracted.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", extracted.Description)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(extracted.Text)
	if extracted.Truncated {
		b.WriteString("\n\n[Content truncated]")
	}
	return &Result{Output: b.String()}
}

func (t *GetPageTextTool) extractPDF(ctx context.Context, env *Env) *Result {
	data, err := env.Session.DocumentContent(ctx)
	if err != nil {
		return errResult("failed to fetch PDF content: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return errResult("failed to decode PDF content: %v", err)
	}

	extracted, err := pagetext.ExtractPDF(bytes.NewReader(raw), env.MaxPageText)
	if err != nil {
		return errResult("failed to extract PDF text: %v", err)
	}
	if extracted.Text == "" {
		return textResult("The PDF contains no extractable text.")
	}
	output := extracted.Text
	if extracted.Truncated {
		output += "\n\n[Content truncated]"
	}
	return &Result{Output: output}
}
