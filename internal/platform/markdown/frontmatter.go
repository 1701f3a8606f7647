package markdown

import (
	"bytes"
	"fmt"
	"maps"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	separator = "---\n"
	closing   = "\n---\n"
)

// Note is a markdown document with an optional YAML frontmatter header.
type Note struct {
	Meta map[string]any
	Body string
}

// Parse splits content into frontmatter and body. Content without a
// leading separator is all body.
func Parse(content string) (Note, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, separator) {
		return Note{Meta: map[string]any{}, Body: content}, nil
	}
	rest := strings.TrimPrefix(content, separator)
	idx := strings.Index(rest, closing)
	if idx < 0 {
		return Note{}, fmt.Errorf("invalid frontmatter: missing closing separator")
	}
	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &meta); err != nil {
		return Note{}, fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	return Note{Meta: meta, Body: rest[idx+len(closing):]}, nil
}

// Merge overwrites the given keys and keeps every other key already in
// the note, so fields a user added by hand survive regeneration.
func (n Note) Merge(owned map[string]any) Note {
	meta := make(map[string]any, len(n.Meta)+len(owned))
	maps.Copy(meta, n.Meta)
	maps.Copy(meta, owned)
	return Note{Meta: meta, Body: n.Body}
}

// Render writes the note back out. Keys are emitted in sorted order.
func (n Note) Render() (string, error) {
	raw, err := yaml.Marshal(n.Meta)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	buf := bytes.Buffer{}
	buf.WriteString(separator)
	buf.Write(raw)
	buf.WriteString(separator)
	if !strings.HasPrefix(n.Body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString(n.Body)
	return buf.String(), nil
}
