package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/services/providers"
)

// MinContentLength is the shortest extracted manual text, in characters, a quiz is generated from
const MinContentLength = 50

// GenerateMaxTokens caps the quiz generation reply
const GenerateMaxTokens = 2048

// GeneratedQuestion is one validated question of an LLM reply
type GeneratedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// ExtractText joins the readable text of the blocks with blank lines, skipping empty blocks
func ExtractText(blocks models.Blocks) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if text := b.PlainText(); strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt renders the generation prompt. language is empty for Japanese.
func BuildPrompt(title, content string, language models.Locale) string {
	var b strings.Builder
	fmt.Fprintf(&b, "以下のマニュアル内容から、理解度を測るための選択式問題を%d問作成してください。\n\n", models.QuizQuestionCount)
	fmt.Fprintf(&b, "マニュアルタイトル: %s\n", title)
	fmt.Fprintf(&b, "マニュアル内容:\n%s\n\n", content)
	b.WriteString("要件:\n")
	fmt.Fprintf(&b, "- 各問題は%d択形式（A, B, C, D）\n", models.QuizOptionCount)
	b.WriteString("- マニュアルの重要なポイントを問う\n")
	b.WriteString("- 実務で役立つ知識を問う\n")
	b.WriteString("- 正解は1つのみ\n")
	b.WriteString("- correct_answer は options のいずれかと完全に一致させる\n")
	b.WriteString("- 解説も付ける")
	if language != "" && language != models.LocaleJapanese {
		fmt.Fprintf(&b, "\n\n重要: 問題文、選択肢、解説は全て%sで作成してください。", language.LanguageName())
	}
	b.WriteString(`

JSONフォーマットのみで回答してください:
{
  "questions": [
    {
      "question": "問題文",
      "options": ["選択肢A", "選択肢B", "選択肢C", "選択肢D"],
      "correct_answer": "選択肢A",
      "explanation": "解説文"
    }
  ]
}`)
	return b.String()
}

// ParseQuiz decodes and validates a generation reply. Any deviation from the
// expected shape is an error; nothing is repaired.
func ParseQuiz(text string) ([]GeneratedQuestion, error) {
	body := providers.StripCodeFence(text)
	if body == "" {
		return nil, errors.New("empty reply")
	}

	var envelope struct {
		Questions []json.RawMessage `json:"questions"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("invalid quiz json: %w", err)
	}
	if dec.More() {
		return nil, errors.New("trailing data after quiz json")
	}

	if len(envelope.Questions) != models.QuizQuestionCount {
		return nil, fmt.Errorf("expected %d questions, got %d", models.QuizQuestionCount, len(envelope.Questions))
	}

	questions := make([]GeneratedQuestion, 0, len(envelope.Questions))
	for i, raw := range envelope.Questions {
		var q GeneratedQuestion
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (q *GeneratedQuestion) validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return errors.New("question text is empty")
	}
	if len(q.Options) != models.QuizOptionCount {
		return fmt.Errorf("expected %d options, got %d", models.QuizOptionCount, len(q.Options))
	}

	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return errors.New("empty option")
		}
		if _, dup := seen[opt]; dup {
			return fmt.Errorf("duplicate option %q", opt)
		}
		seen[opt] = struct{}{}
	}

	if _, ok := seen[q.CorrectAnswer]; !ok {
		return fmt.Errorf("correct answer %q is not one of the options", q.CorrectAnswer)
	}
	if strings.TrimSpace(q.Explanation) == "" {
		return errors.New("explanation is empty")
	}
	return nil
}
