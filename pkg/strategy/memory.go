package strategy

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyMemoryItem is returned for nil items or items without content
var ErrEmptyMemoryItem = errors.New("memory item has no content")

// MemoryType tags the source shape of a standardized item
type MemoryType string

const (
	MemoryMessage    MemoryType = "message"
	MemoryText       MemoryType = "text"
	MemoryStructured MemoryType = "structured"
	MemoryUnknown    MemoryType = "unknown"
)

// StandardizedMemoryItem is the engine-neutral form memory takes while moving
// between engines during a swap. It is never persisted.
type StandardizedMemoryItem struct {
	Type      MemoryType             `json:"type"`
	Content   string                 `json:"content"`
	Role      string                 `json:"role,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

var knownRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
	"tool":      true,
}

// structured keys that map onto item fields rather than metadata
var reservedKeys = map[string]bool{
	"type":      true,
	"content":   true,
	"text":      true,
	"output":    true,
	"role":      true,
	"timestamp": true,
}

// Standardize detects the shape of a native memory item and converts it
func Standardize(item interface{}) (StandardizedMemoryItem, error) {
	switch v := item.(type) {
	case nil:
		return StandardizedMemoryItem{}, ErrEmptyMemoryItem
	case Message:
		return fromMessage(v)
	case *Message:
		if v == nil {
			return StandardizedMemoryItem{}, ErrEmptyMemoryItem
		}
		return fromMessage(*v)
	case string:
		return fromText(v)
	case map[string]interface{}:
		return fromStructured(v)
	case fmt.Stringer:
		return unknownItem(v.String())
	default:
		return unknownItem(fmt.Sprintf("%v", v))
	}
}

// StandardizeAll converts every item, skipping and counting the ones that fail
func StandardizeAll(items []interface{}) ([]StandardizedMemoryItem, int) {
	out := make([]StandardizedMemoryItem, 0, len(items))
	failed := 0
	for _, item := range items {
		std, err := Standardize(item)
		if err != nil {
			failed++
			continue
		}
		out = append(out, std)
	}
	return out, failed
}

func fromMessage(m Message) (StandardizedMemoryItem, error) {
	if strings.TrimSpace(m.Content) == "" {
		return StandardizedMemoryItem{}, ErrEmptyMemoryItem
	}
	return StandardizedMemoryItem{
		Type:      MemoryMessage,
		Content:   m.Content,
		Role:      m.Role,
		Timestamp: orNow(m.Timestamp),
	}, nil
}

// fromText accepts raw strings, recognising a leading "role: " prefix
func fromText(s string) (StandardizedMemoryItem, error) {
	if strings.TrimSpace(s) == "" {
		return StandardizedMemoryItem{}, ErrEmptyMemoryItem
	}
	item := StandardizedMemoryItem{
		Type:      MemoryText,
		Content:   s,
		Timestamp: time.Now(),
	}
	if idx := strings.Index(s, ": "); idx > 0 {
		if role := s[:idx]; knownRoles[role] {
			item.Role = role
			item.Content = s[idx+2:]
		}
	}
	return item, nil
}

func fromStructured(m map[string]interface{}) (StandardizedMemoryItem, error) {
	content := firstString(m, "content", "text", "output")
	if strings.TrimSpace(content) == "" {
		return StandardizedMemoryItem{}, ErrEmptyMemoryItem
	}

	item := StandardizedMemoryItem{
		Type:      MemoryStructured,
		Content:   content,
		Role:      firstString(m, "role"),
		Timestamp: time.Now(),
	}

	switch ts := m["timestamp"].(type) {
	case time.Time:
		item.Timestamp = ts
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			item.Timestamp = parsed
		}
	}

	for k, v := range m {
		if reservedKeys[k] {
			continue
		}
		if item.Metadata == nil {
			item.Metadata = make(map[string]interface{})
		}
		item.Metadata[k] = v
	}
	if kind, ok := m["type"].(string); ok && kind != "" {
		if item.Metadata == nil {
			item.Metadata = make(map[string]interface{})
		}
		item.Metadata["source_type"] = kind
	}
	return item, nil
}

func unknownItem(s string) (StandardizedMemoryItem, error) {
	if strings.TrimSpace(s) == "" {
		return StandardizedMemoryItem{}, ErrEmptyMemoryItem
	}
	return StandardizedMemoryItem{
		Type:      MemoryUnknown,
		Content:   s,
		Timestamp: time.Now(),
	}, nil
}

// ToMessage converts the item to the conversational shape
func (m StandardizedMemoryItem) ToMessage() Message {
	role := m.Role
	if role == "" {
		role = "user"
	}
	return Message{Role: role, Content: m.Content, Timestamp: m.Timestamp}
}

// ToStructured converts the item to the structured record shape
func (m StandardizedMemoryItem) ToStructured() map[string]interface{} {
	out := make(map[string]interface{}, len(m.Metadata)+4)
	for k, v := range m.Metadata {
		if k == "source_type" {
			continue
		}
		out[k] = v
	}
	kind := string(m.Type)
	if st, ok := m.Metadata["source_type"].(string); ok && st != "" {
		kind = st
	}
	out["type"] = kind
	out["content"] = m.Content
	out["role"] = m.Role
	out["timestamp"] = m.Timestamp
	return out
}

// ToText converts the item to the raw string shape
func (m StandardizedMemoryItem) ToText() string {
	if m.Role == "" {
		return m.Content
	}
	return m.Role + ": " + m.Content
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
