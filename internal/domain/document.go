package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Block is one typed unit of rich content.
type Block struct {
	ID      string
	Type    BlockType
	Content Payload
}

type blockJSON struct {
	ID      string          `json:"id"`
	Type    BlockType       `json:"type"`
	Content json.RawMessage `json:"content"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	content := []byte("{}")
	if b.Content != nil {
		raw, err := json.Marshal(b.Content)
		if err != nil {
			return nil, fmt.Errorf("marshal %s block %s: %w", b.Type, b.ID, err)
		}
		content = raw
	}
	return json.Marshal(blockJSON{ID: b.ID, Type: b.Type, Content: content})
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.ID = raw.ID
	b.Type = raw.Type
	b.Content = decodePayload(raw.Type, raw.Content)
	return nil
}

// decodePayload decodes content field by field so that one malformed field
// only loses itself.
func decodePayload(t BlockType, data []byte) Payload {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			fields = map[string]json.RawMessage{}
		}
	}

	if !t.Valid() {
		return &UnknownContent{Tag: t, Fields: fields}
	}

	p := NewPayload(t)
	for key, value := range fields {
		single, err := json.Marshal(map[string]json.RawMessage{key: value})
		if err != nil {
			continue
		}
		if err := json.Unmarshal(single, NewPayload(t)); err != nil {
			continue
		}
		_ = json.Unmarshal(single, p)
	}
	return p
}

// ApplyPatch shallow-merges patch into the block content. Keys in patch
// replace the same keys in the content; all other keys are retained. The id
// and type of the block never change. Unlike stored content, a patch value
// of the wrong shape is rejected instead of dropped.
func ApplyPatch(b Block, patch map[string]any) (Block, error) {
	fields := map[string]json.RawMessage{}
	if b.Content != nil {
		current, err := json.Marshal(b.Content)
		if err != nil {
			return b, fmt.Errorf("marshal content: %w", err)
		}
		if err := json.Unmarshal(current, &fields); err != nil {
			return b, fmt.Errorf("decode content: %w", err)
		}
	}

	for key, value := range patch {
		raw, err := json.Marshal(value)
		if err != nil {
			return b, Invalid(key, "cannot encode value: %v", err)
		}
		if err := checkField(b.Type, key, raw); err != nil {
			return b, err
		}
		fields[key] = raw
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return b, fmt.Errorf("marshal merged content: %w", err)
	}

	return Block{ID: b.ID, Type: b.Type, Content: decodePayload(b.Type, merged)}, nil
}

// checkField decodes one patched field strictly against the payload of t.
func checkField(t BlockType, key string, raw json.RawMessage) error {
	if !t.Valid() {
		return nil
	}
	single, err := json.Marshal(map[string]json.RawMessage{key: raw})
	if err != nil {
		return Invalid(key, "cannot encode value: %v", err)
	}
	if err := json.Unmarshal(single, NewPayload(t)); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Invalid(key, "expected %s, got %s", typeErr.Type, typeErr.Value)
		}
		return Invalid(key, "invalid value for a %s block", t)
	}
	return nil
}

// IDGenerator issues block identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues time-ordered UUIDv7 identifiers. Successive ids from
// one process sort in creation order.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Document is an ordered sequence of blocks rendered top to bottom. All
// operations return a new Document and leave the receiver untouched.
type Document []Block

func (d Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Block(d))
}

// Value stores the document as a JSON array.
func (d Document) Value() (driver.Value, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (d *Document) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*d = Document{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan document: unsupported type %T", src)
	}
	if !json.Valid(data) {
		return fmt.Errorf("scan document: invalid JSON")
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		slog.Warn("stored document is not a JSON array, reading it as empty", "prefix", prefix(trimmed, 32))
		*d = Document{}
		return nil
	}
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("scan document: %w", err)
	}
	*d = blocks
	return nil
}

func prefix(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// Find returns the block with id and its position.
func (d Document) Find(id string) (Block, int, bool) {
	for i, b := range d {
		if b.ID == id {
			return b, i, true
		}
	}
	return Block{}, -1, false
}

// Add appends a new block of type t with empty content.
func (d Document) Add(t BlockType, ids IDGenerator) (Document, Block, error) {
	if !t.Valid() {
		return d, Block{}, Invalid("type", "unknown block type %q", t)
	}
	b := Block{ID: ids.NewID(), Type: t, Content: NewPayload(t)}
	out := make(Document, 0, len(d)+1)
	out = append(out, d...)
	return append(out, b), b, nil
}

// Update merges patch into the content of block id.
func (d Document) Update(id string, patch map[string]any) (Document, error) {
	current, idx, ok := d.Find(id)
	if !ok {
		return d, fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	patched, err := ApplyPatch(current, patch)
	if err != nil {
		return d, err
	}
	out := make(Document, len(d))
	copy(out, d)
	out[idx] = patched
	return out, nil
}

// Remove drops exactly one block by id; the remaining blocks keep their order.
func (d Document) Remove(id string) (Document, error) {
	_, idx, ok := d.Find(id)
	if !ok {
		return d, fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	out := make(Document, 0, len(d)-1)
	out = append(out, d[:idx]...)
	return append(out, d[idx+1:]...), nil
}

// Move places block id at position to, clamped to the document bounds.
func (d Document) Move(id string, to int) (Document, error) {
	b, _, ok := d.Find(id)
	if !ok {
		return d, fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	rest, _ := d.Remove(id)
	if to < 0 {
		to = 0
	}
	if to > len(rest) {
		to = len(rest)
	}
	out := make(Document, 0, len(d))
	out = append(out, rest[:to]...)
	out = append(out, b)
	return append(out, rest[to:]...), nil
}

// Validate checks the structural requirements of a document before it is
// written.
func (d Document) Validate() error {
	for i, b := range d {
		if b.ID == "" {
			return Invalid(fmt.Sprintf("content[%d].id", i), "is required")
		}
		if b.Type == "" {
			return Invalid(fmt.Sprintf("content[%d].type", i), "is required")
		}
	}
	return nil
}
