package translation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/upb/manual-share/models"
)

// ChunkSize is the number of blocks sent per translation call
const ChunkSize = 5

const (
	// TitleMaxTokens caps the title translation reply
	TitleMaxTokens = 200

	// ChunkMaxTokens caps each block chunk reply
	ChunkMaxTokens = 8192
)

// chunk is a contiguous run of blocks starting at a global block index
type chunk struct {
	start  int
	blocks models.Blocks
}

// translatedBlock is one entry of a chunk reply
type translatedBlock struct {
	BlockIndex int             `json:"blockIndex"`
	Type       string          `json:"type"`
	Content    json.RawMessage `json:"content"`
}

type chunkReply struct {
	Blocks []translatedBlock `json:"blocks"`
}

func splitChunks(blocks models.Blocks, size int) []chunk {
	var chunks []chunk
	for start := 0; start < len(blocks); start += size {
		end := start + size
		if end > len(blocks) {
			end = len(blocks)
		}
		chunks = append(chunks, chunk{start: start, blocks: blocks[start:end]})
	}
	return chunks
}

// serializeChunk renders blocks in the tagged text form the prompt explains.
// Media blocks contribute only their index tag.
func serializeChunk(c chunk) string {
	parts := make([]string, len(c.blocks))
	for i, b := range c.blocks {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[ブロック%d]", c.start+i)

		switch {
		case b.Type.IsHeading():
			fmt.Fprintf(&sb, "\n[見出し] %s", b.Content)
		case b.Type == models.BlockParagraph:
			fmt.Fprintf(&sb, "\n[段落] %s", b.Content)
		case b.Type.IsList():
			tag := "[リスト]"
			if b.Type == models.BlockNumberedList {
				tag = "[番号付きリスト]"
			}
			items, ok := b.ListItems()
			if !ok {
				fmt.Fprintf(&sb, "\n%s %s", tag, b.Content)
				break
			}
			sb.WriteString("\n" + tag)
			for n, item := range items {
				if b.Type == models.BlockNumberedList {
					fmt.Fprintf(&sb, "\n%d. %s", n+1, item)
				} else {
					fmt.Fprintf(&sb, "\n- %s", item)
				}
			}
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, "\n\n")
}

func titlePrompt(title string, target models.Locale) string {
	return fmt.Sprintf("以下のマニュアルタイトルを%sに翻訳してください。翻訳結果のみを返してください。\n\nタイトル: %s",
		target.LanguageName(), title)
}

func chunkPrompt(text string, target models.Locale) string {
	return fmt.Sprintf(`あなたはプロの翻訳者です。以下の日本語のマニュアルブロックを%[1]sに翻訳してください。

翻訳ルール：
1. 正確で自然な翻訳を心がける
2. 専門用語は適切に訳す
3. 敬語は対象言語の標準的な丁寧表現を使う
4. [ブロックN]、[見出し]、[段落]、[リスト]のタグは保持する
5. JSONフォーマットで回答する

マニュアルブロック:
%[2]s

以下のJSONフォーマットで翻訳結果を返してください：
{
  "blocks": [
    {"blockIndex": 0, "type": "heading1", "content": "翻訳された見出し"},
    {"blockIndex": 1, "type": "paragraph", "content": "翻訳された段落"},
    {"blockIndex": 2, "type": "bullet_list", "content": "[\"項目1\", \"項目2\"]"}
  ]
}`, target.LanguageName(), text)
}

// parseChunkReply decodes the span from the first '{' to the last '}' of a reply
func parseChunkReply(text string) ([]translatedBlock, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, errors.New("no json object in reply")
	}

	var reply chunkReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("invalid chunk json: %w", err)
	}
	if reply.Blocks == nil {
		return nil, errors.New("reply has no blocks array")
	}
	return reply.Blocks, nil
}

// contentString accepts a JSON string, or for list blocks a JSON array of strings
// which is re-encoded into the stored list form
func (t translatedBlock) contentString() (string, bool) {
	if len(t.Content) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(t.Content, &s); err == nil {
		return s, true
	}
	var items []string
	if err := json.Unmarshal(t.Content, &items); err == nil {
		encoded, err := json.Marshal(items)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	}
	return "", false
}

// merge overlays translations onto a copy of the original blocks by global index.
// Ids and order always come from the original, media blocks are never changed, and
// a translation that would leave a block invalid is dropped for that block.
func merge(original models.Blocks, translated map[int]translatedBlock) models.Blocks {
	out := original.Clone()
	for i, orig := range original {
		t, ok := translated[i]
		if !ok || orig.Type.IsMedia() {
			continue
		}

		candidate := orig
		if typ := models.BlockType(t.Type); typ.IsText() {
			candidate.Type = typ
		}
		if content, ok := t.contentString(); ok && strings.TrimSpace(content) != "" {
			candidate.Content = content
		}

		if candidate.Validate() != nil {
			continue
		}
		out[i] = candidate
	}
	return out
}
