package document

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractEmbeddedText pulls text-showing operators out of every page's content
// stream. Pages without usable text streams yield "".
func extractEmbeddedText(ctx *model.Context) []string {
	pages := make([]string, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil || len(data) == 0 {
			continue
		}
		pages[pageNr-1] = textFromContentStream(data)
	}
	return pages
}

// pdfLiteral matches PDF string literals in parentheses: (text here)
var pdfLiteral = regexp.MustCompile(`\(([^)]*)\)`)

// textFromContentStream walks the content stream line by line and collects
// the arguments of Tj, TJ and ' text-showing operators. Positioning operators
// become whitespace so words do not run together.
func textFromContentStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("Tj")) || bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfLiteral.FindAllSubmatch(line, -1) {
				sb.WriteString(decodeLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfLiteral.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodeLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")) || bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}
	return collapseWhitespace(sb.String())
}

// decodeLiteral resolves the basic PDF escape sequences inside a string literal.
func decodeLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

func collapseWhitespace(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case r == '\n':
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte('\n')
				prevSpace = true
			}
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
