// Package pagetext converts page content surfaces into plain text for the
// model: rendered HTML documents and PDF documents.
package pagetext

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// PageText is extracted page text with metadata.
type PageText struct {
	Title       string
	Description string
	Text        string
	Truncated   bool
}

// ExtractHTML extracts readable text from an HTML document, dropping
// scripts, styles, and other non-content elements. Block elements become
// line breaks so the text keeps its visual grouping. Output is capped at
// maxLength characters.
func ExtractHTML(rawHTML string, maxLength int) (*PageText, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &PageText{
		Title:       extractTitle(doc),
		Description: extractMetaDescription(doc),
	}

	var builder strings.Builder
	var currentLength int
	result.Truncated = extractNode(doc, &builder, &currentLength, maxLength)

	result.Text = normalizeBlankLines(builder.String())
	return result, nil
}

// extractNode recursively walks nodes, appending text content. Returns true
// when the length cap was hit.
func extractNode(n *html.Node, builder *strings.Builder, currentLength *int, maxLength int) bool {
	if *currentLength >= maxLength {
		return true
	}

	if n.Type == html.CommentNode {
		return false
	}

	if n.Type == html.ElementNode && isSkippedElement(strings.ToLower(n.Data)) {
		return false
	}

	if n.Type == html.TextNode {
		return appendText(n.Data, builder, currentLength, maxLength)
	}

	blockBreak := n.Type == html.ElementNode && isBlockElement(strings.ToLower(n.Data))
	if blockBreak {
		builder.WriteString("\n")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if extractNode(c, builder, currentLength, maxLength) {
			return true
		}
	}

	if blockBreak {
		builder.WriteString("\n")
	}
	return false
}

// appendText writes one text node's content, truncating at the cap.
func appendText(raw string, builder *strings.Builder, currentLength *int, maxLength int) bool {
	text := strings.TrimSpace(raw)
	if text == "" {
		return false
	}

	if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
		builder.WriteString(" ")
	}

	if *currentLength+len(text) > maxLength {
		remaining := maxLength - *currentLength
		if remaining < 0 {
			remaining = 0
		}
		// Back off to a rune boundary so the cap never splits a
		// multi-byte character.
		for remaining > 0 && !utf8.RuneStart(text[remaining]) {
			remaining--
		}
		builder.WriteString(text[:remaining] + "...")
		*currentLength = maxLength
		return true
	}

	builder.WriteString(text)
	*currentLength += len(text)
	return false
}

// normalizeBlankLines collapses runs of blank lines left by nested blocks.
func normalizeBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, trimmed)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// isSkippedElement returns true for elements with no readable content.
func isSkippedElement(tagName string) bool {
	skipped := map[string]bool{
		"script":   true,
		"style":    true,
		"noscript": true,
		"iframe":   true,
		"embed":    true,
		"object":   true,
		"svg":      true,
		"title":    true, // captured as metadata, not body text
		"template": true,
	}
	return skipped[tagName]
}

// isBlockElement returns true for elements that imply a line break.
func isBlockElement(tagName string) bool {
	blocks := map[string]bool{
		"div":        true,
		"p":          true,
		"section":    true,
		"article":    true,
		"header":     true,
		"footer":     true,
		"nav":        true,
		"main":       true,
		"aside":      true,
		"h1":         true,
		"h2":         true,
		"h3":         true,
		"h4":         true,
		"h5":         true,
		"h6":         true,
		"ul":         true,
		"ol":         true,
		"li":         true,
		"table":      true,
		"tr":         true,
		"td":         true,
		"th":         true,
		"form":       true,
		"fieldset":   true,
		"blockquote": true,
		"pre":        true,
		"br":         true,
	}
	return blocks[tagName]
}

// extractTitle extracts the page title from the document.
func extractTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
			if title != "" {
				return
			}
		}
	}
	traverse(doc)
	return title
}

// extractMetaDescription extracts the meta description from the document.
func extractMetaDescription(doc *html.Node) string {
	var description string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var isDescription bool
			var content string
			for _, attr := range n.Attr {
				if attr.Key == "name" && attr.Val == "description" {
					isDescription = true
				}
				if attr.Key == "content" {
					content = attr.Val
				}
			}
			if isDescription && content != "" {
				description = strings.TrimSpace(content)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
			if description != "" {
				return
			}
		}
	}
	traverse(doc)
	return description
}
