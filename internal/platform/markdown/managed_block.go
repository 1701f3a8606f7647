package markdown

import "strings"

// Block is a region of a note owned by the program, delimited by marker
// lines. Everything outside it belongs to the user.
type Block struct {
	Start string
	End   string
}

// Replace swaps the block's content for generated, or appends the block
// when the body has none. A start marker whose end marker was deleted
// claims the rest of the body.
func (b Block) Replace(body, generated string) string {
	rendered := b.Start + "\n" + generated + "\n" + b.End

	if start := strings.Index(body, b.Start); start >= 0 {
		tail := ""
		if end := strings.Index(body[start:], b.End); end >= 0 {
			tail = body[start+end+len(b.End):]
		} else {
			tail = "\n"
		}
		return body[:start] + rendered + tail
	}

	switch {
	case strings.TrimSpace(body) == "":
		return rendered + "\n"
	case strings.HasSuffix(body, "\n"):
		return body + "\n" + rendered + "\n"
	default:
		return body + "\n\n" + rendered + "\n"
	}
}

// Content returns what is currently inside the block.
func (b Block) Content(body string) (string, bool) {
	start := strings.Index(body, b.Start)
	if start < 0 {
		return "", false
	}
	inner := body[start+len(b.Start):]
	end := strings.Index(inner, b.End)
	if end < 0 {
		return "", false
	}
	return strings.Trim(inner[:end], "\n"), true
}
