package pagetext

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// maxPDFPages caps extraction; documents past this are truncated.
const maxPDFPages = 50

// ExtractPDF extracts text from a PDF document. Extraction works from the
// page content streams' text-showing operators, so layout is approximated:
// each text run becomes a token, runs are joined with spaces, pages with
// newlines. Output is capped at maxLength characters.
func ExtractPDF(rs io.ReadSeeker, maxLength int) (*PageText, error) {
	ctx, err := api.ReadContext(rs, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}

	result := &PageText{}
	pages := ctx.PageCount
	if pages > maxPDFPages {
		pages = maxPDFPages
		result.Truncated = true
	}

	var builder strings.Builder
	for pageNr := 1; pageNr <= pages; pageNr++ {
		content, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil {
			// A single unreadable page should not sink the document
			continue
		}
		raw, err := io.ReadAll(content)
		if err != nil {
			continue
		}
		pageText := textFromContentStream(string(raw))
		if pageText == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(pageText)

		if builder.Len() >= maxLength {
			result.Truncated = true
			break
		}
	}

	text := builder.String()
	if len(text) > maxLength {
		text = text[:maxLength] + "..."
		result.Truncated = true
	}
	result.Text = text
	return result, nil
}

// textFromContentStream pulls literal string operands out of a decoded
// content stream. In practice literal strings appear only as operands of the
// text-showing operators (Tj, TJ, ', "), so collecting them approximates the
// page text. Hex strings are skipped since their byte meaning depends on the
// font encoding.
func textFromContentStream(stream string) string {
	var tokens []string
	i := 0
	for i < len(stream) {
		if stream[i] != '(' {
			i++
			continue
		}
		literal, next, ok := readLiteralString(stream, i)
		i = next
		if !ok {
			continue
		}
		literal = strings.TrimSpace(literal)
		if literal != "" {
			tokens = append(tokens, literal)
		}
	}
	return strings.Join(tokens, " ")
}

// readLiteralString reads a PDF literal string starting at the '(' at
// position start, handling escapes and nested parentheses. Returns the
// unescaped content and the position after the closing ')'.
func readLiteralString(stream string, start int) (string, int, bool) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(stream) {
		ch := stream[i]
		switch ch {
		case '\\':
			if i+1 < len(stream) {
				b.WriteString(unescapePDFChar(stream[i+1]))
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				b.WriteByte(ch)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1, true
			}
			b.WriteByte(ch)
			i++
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return "", i, false
}

// unescapePDFChar resolves one backslash escape.
func unescapePDFChar(ch byte) string {
	switch ch {
	case 'n':
		return "\n"
	case 'r':
		return "\r"
	case 't':
		return "\t"
	case '(', ')', '\\':
		return string(ch)
	default:
		return ""
	}
}

