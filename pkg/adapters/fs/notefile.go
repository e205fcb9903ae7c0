package fs

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/notewire/notewire/pkg/core"
)

// Notes and comments are stored as Markdown files with a YAML frontmatter
// block: the structural fields live in the frontmatter, the note body is
// the content. The file name (minus extension) is the id.

type noteFrontmatter struct {
	URL        string    `yaml:"url"`
	Theme      string    `yaml:"theme,omitempty"`
	Owner      string    `yaml:"owner"`
	SharedWith []string  `yaml:"shared_with,omitempty"`
	CreatedAt  time.Time `yaml:"created_at"`
	UpdatedAt  time.Time `yaml:"updated_at"`
}

type commentFrontmatter struct {
	Author    string    `yaml:"author"`
	CreatedAt time.Time `yaml:"created_at"`
}

func parseNote(id string, data []byte) (core.Note, error) {
	fm := noteFrontmatter{}
	content, err := parseFrontmatter(data, &fm)
	if err != nil {
		return core.Note{}, fmt.Errorf("note %s: %w", id, err)
	}
	return core.Note{
		ID:         id,
		URL:        fm.URL,
		Content:    content,
		Theme:      fm.Theme,
		OwnerID:    core.Identity(fm.Owner),
		SharedWith: fm.SharedWith,
		CreatedAt:  fm.CreatedAt,
		UpdatedAt:  fm.UpdatedAt,
	}, nil
}

func serializeNote(n core.Note) ([]byte, error) {
	return serializeFrontmatter(noteFrontmatter{
		URL:        n.URL,
		Theme:      n.Theme,
		Owner:      string(n.OwnerID),
		SharedWith: n.SharedWith,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}, n.Content)
}

func parseComment(id, noteID string, data []byte) (core.Comment, error) {
	fm := commentFrontmatter{}
	content, err := parseFrontmatter(data, &fm)
	if err != nil {
		return core.Comment{}, fmt.Errorf("comment %s: %w", id, err)
	}
	return core.Comment{
		ID:        id,
		NoteID:    noteID,
		AuthorID:  core.Identity(fm.Author),
		Content:   content,
		CreatedAt: fm.CreatedAt,
	}, nil
}

func serializeComment(c core.Comment) ([]byte, error) {
	return serializeFrontmatter(commentFrontmatter{
		Author:    string(c.AuthorID),
		CreatedAt: c.CreatedAt,
	}, c.Content)
}

func parseFrontmatter(data []byte, out any) (content string, err error) {
	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		return "", errors.New("missing frontmatter")
	}

	rest := data[3:]
	parts := bytes.SplitN(rest, []byte("---"), 2)
	if len(parts) == 1 {
		return "", errors.New("frontmatter started but no closing delimiter found")
	}

	if err := yaml.Unmarshal(parts[0], out); err != nil {
		return "", fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	content = strings.TrimPrefix(string(parts[1]), "\n")
	content = strings.TrimPrefix(content, "\r\n")
	return content, nil
}

func serializeFrontmatter(fm any, content string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(fm); err != nil {
		return nil, err
	}
	encoder.Close()
	buf.WriteString("---\n")
	buf.WriteString(content)
	return buf.Bytes(), nil
}
