package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// BlockType is the kind of a manual content block
type BlockType string

const (
	BlockHeading1     BlockType = "heading1"
	BlockHeading2     BlockType = "heading2"
	BlockHeading3     BlockType = "heading3"
	BlockParagraph    BlockType = "paragraph"
	BlockBulletList   BlockType = "bullet_list"
	BlockNumberedList BlockType = "numbered_list"
	BlockImage        BlockType = "image"
	BlockVideo        BlockType = "video"
)

// IsValid reports whether t is a known block type
func (t BlockType) IsValid() bool {
	switch t {
	case BlockHeading1, BlockHeading2, BlockHeading3, BlockParagraph,
		BlockBulletList, BlockNumberedList, BlockImage, BlockVideo:
		return true
	}
	return false
}

// IsHeading reports whether t is one of the heading levels
func (t BlockType) IsHeading() bool {
	return t == BlockHeading1 || t == BlockHeading2 || t == BlockHeading3
}

// IsList reports whether the block content is a JSON encoded string array
func (t BlockType) IsList() bool {
	return t == BlockBulletList || t == BlockNumberedList
}

// IsMedia reports whether the block content is a media URL
func (t BlockType) IsMedia() bool {
	return t == BlockImage || t == BlockVideo
}

// IsText reports whether the block carries translatable text
func (t BlockType) IsText() bool {
	return t.IsHeading() || t == BlockParagraph || t.IsList()
}

// Block is one typed unit of manual content.
// For list types Content holds a JSON array of strings, for media types a URL.
type Block struct {
	ID      string    `json:"id"`
	Type    BlockType `json:"type"`
	Content string    `json:"content"`
	Order   int       `json:"order"`
}

// ListItems decodes list content. ok is false when the content is not a JSON string array.
func (b Block) ListItems() (items []string, ok bool) {
	if err := json.Unmarshal([]byte(b.Content), &items); err != nil {
		return nil, false
	}
	return items, true
}

// PlainText returns the readable text of a block, or "" for media blocks.
// Malformed list content falls back to the raw content.
func (b Block) PlainText() string {
	switch {
	case b.Type.IsHeading(), b.Type == BlockParagraph:
		return b.Content
	case b.Type.IsList():
		items, ok := b.ListItems()
		if !ok {
			return b.Content
		}
		return strings.Join(items, "\n")
	default:
		return ""
	}
}

// Validate checks the block type and content shape
func (b Block) Validate() error {
	if !b.Type.IsValid() {
		return fmt.Errorf("unknown block type: %q", b.Type)
	}
	if b.Type.IsList() {
		if _, ok := b.ListItems(); !ok {
			return fmt.Errorf("block %s: list content must be a JSON array of strings", b.ID)
		}
	}
	if b.Type.IsMedia() && strings.TrimSpace(b.Content) == "" {
		return fmt.Errorf("block %s: media url is required", b.ID)
	}
	return nil
}

// Blocks is an ordered block list stored as a JSONB column
type Blocks []Block

// Value implements driver.Valuer
func (bs Blocks) Value() (driver.Value, error) {
	if bs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(bs)
}

// Scan implements sql.Scanner
func (bs *Blocks) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*bs = Blocks{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Blocks", src)
	}
	return json.Unmarshal(data, bs)
}

// Renumber sets Order to the slice position of each block
func (bs Blocks) Renumber() {
	for i := range bs {
		bs[i].Order = i
	}
}

// Clone returns a copy that can be mutated independently
func (bs Blocks) Clone() Blocks {
	out := make(Blocks, len(bs))
	copy(out, bs)
	return out
}

// MoveBlockUp swaps the block at index with its predecessor.
// Only the two swapped blocks change; out of range indexes are a no-op.
func MoveBlockUp(bs Blocks, index int) Blocks {
	if index <= 0 || index >= len(bs) {
		return bs
	}
	return swapAdjacent(bs, index-1)
}

// MoveBlockDown swaps the block at index with its successor.
// Only the two swapped blocks change; out of range indexes are a no-op.
func MoveBlockDown(bs Blocks, index int) Blocks {
	if index < 0 || index >= len(bs)-1 {
		return bs
	}
	return swapAdjacent(bs, index)
}

// swapAdjacent swaps positions i and i+1, keeping each position's order value
func swapAdjacent(bs Blocks, i int) Blocks {
	out := bs.Clone()
	out[i], out[i+1] = out[i+1], out[i]
	out[i].Order, out[i+1].Order = bs[i].Order, bs[i+1].Order
	return out
}

// InsertBlock inserts b at index (clamped to the list bounds) and renumbers
func InsertBlock(bs Blocks, index int, b Block) Blocks {
	if index < 0 {
		index = 0
	}
	if index > len(bs) {
		index = len(bs)
	}
	out := make(Blocks, 0, len(bs)+1)
	out = append(out, bs[:index]...)
	out = append(out, b)
	out = append(out, bs[index:]...)
	out.Renumber()
	return out
}

// RemoveBlock removes the block with the given id and renumbers
func RemoveBlock(bs Blocks, id string) Blocks {
	out := make(Blocks, 0, len(bs))
	for _, b := range bs {
		if b.ID != id {
			out = append(out, b)
		}
	}
	out.Renumber()
	return out
}
