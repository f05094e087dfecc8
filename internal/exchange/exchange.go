// Package exchange exports the agent configuration as a portable JSON or
// YAML document and imports such documents back.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sozercan/cosilium/internal/agents"
)

// Version is the document format version written by Export.
const Version = "1.0"

// Document types.
const (
	TypeFull    = "full"
	TypePrompts = "prompts"
	TypeConfigs = "configs"
)

// Formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// PromptTypeSystem is the only prompt type agents use.
const PromptTypeSystem = "system"

const source = "cosilium"

var (
	ErrUnsupportedType   = errors.New("unsupported document type")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

type Document struct {
	Version    string    `json:"version" yaml:"version"`
	ExportedAt time.Time `json:"exported_at" yaml:"exported_at"`
	Type       string    `json:"type" yaml:"type"`
	Data       Data      `json:"data" yaml:"data"`
	Metadata   *Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type Data struct {
	Prompts      []Prompt      `json:"prompts,omitempty" yaml:"prompts,omitempty"`
	AgentConfigs []AgentConfig `json:"agent_configs,omitempty" yaml:"agent_configs,omitempty"`
}

type Prompt struct {
	AgentID    string `json:"agent_id" yaml:"agent_id"`
	PromptType string `json:"prompt_type" yaml:"prompt_type"`
	Content    string `json:"content" yaml:"content"`
}

type AgentConfig struct {
	AgentID     string  `json:"agent_id" yaml:"agent_id"`
	Name        string  `json:"name,omitempty" yaml:"name,omitempty"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int64   `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Enabled     bool    `json:"enabled" yaml:"enabled"`
}

type Metadata struct {
	Source      string `json:"source" yaml:"source"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ValidType reports whether t names an exportable document type.
func ValidType(t string) bool {
	switch t {
	case TypeFull, TypePrompts, TypeConfigs:
		return true
	}
	return false
}

// Export builds a document from the roster. Prompts are the effective system
// prompts, overrides included. A non-empty agentID limits the document to
// that agent.
func Export(ctx context.Context, roster agents.Roster, docType, agentID string) (*Document, error) {
	if docType == "" {
		docType = TypeFull
	}
	if !ValidType(docType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, docType)
	}

	doc := &Document{
		Version:    Version,
		ExportedAt: time.Now().UTC(),
		Type:       docType,
		Metadata:   &Metadata{Source: source},
	}

	for _, a := range roster {
		if agentID != "" && a.ID != agentID {
			continue
		}
		if docType == TypeFull || docType == TypePrompts {
			content, _ := a.SystemPrompt(ctx)
			doc.Data.Prompts = append(doc.Data.Prompts, Prompt{
				AgentID:    a.ID,
				PromptType: PromptTypeSystem,
				Content:    content,
			})
		}
		if docType == TypeFull || docType == TypeConfigs {
			doc.Data.AgentConfigs = append(doc.Data.AgentConfigs, AgentConfig{
				AgentID:     a.ID,
				Name:        a.Name,
				Model:       a.Model(),
				Temperature: a.Temperature(),
				MaxTokens:   a.MaxTokens(),
				Enabled:     a.Enabled(),
			})
		}
	}
	return doc, nil
}

// Encode writes doc in the given format.
func Encode(w io.Writer, doc *Document, format string) error {
	switch format {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ContentType returns the media type for format.
func ContentType(format string) string {
	if format == FormatYAML {
		return "application/x-yaml"
	}
	return "application/json"
}

// Filename is the suggested attachment name for an export.
func Filename(docType, format string, at time.Time) string {
	ext := FormatJSON
	if format == FormatYAML {
		ext = FormatYAML
	}
	return fmt.Sprintf("cosilium-config-%s-%s.%s", docType, at.Format("2006-01-02"), ext)
}

// Decode parses a document. JSON and YAML content types are honoured;
// anything else is tried as JSON first, then as YAML.
func Decode(data []byte, contentType string) (*Document, error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return decodeJSON(data)
	case strings.Contains(ct, "yaml"), strings.Contains(ct, "text/plain"):
		return decodeYAML(data)
	}
	if doc, err := decodeJSON(data); err == nil {
		return doc, nil
	}
	return decodeYAML(data)
}

func decodeJSON(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return &doc, nil
}

func decodeYAML(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode yaml: empty document")
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &doc, nil
}
