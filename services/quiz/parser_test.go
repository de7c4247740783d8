package quiz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/manual-share/models"
)

// quizJSON renders n questions whose correct answer is always the first option
func quizJSON(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"question":"Q%d","options":["A%d","B%d","C%d","D%d"],"correct_answer":"A%d","explanation":"E%d"}`,
			i, i, i, i, i, i, i)
	}
	return `{"questions":[` + strings.Join(items, ",") + `]}`
}

func TestExtractText(t *testing.T) {
	blocks := models.Blocks{
		{Type: models.BlockHeading1, Content: "Title"},
		{Type: models.BlockImage, Content: "/media/a.png"},
		{Type: models.BlockParagraph, Content: "   "},
		{Type: models.BlockBulletList, Content: `["one","two"]`},
		{Type: models.BlockNumberedList, Content: "not json"},
	}

	assert.Equal(t, "Title\n\none\ntwo\n\nnot json", ExtractText(blocks))
	assert.Equal(t, "", ExtractText(nil))
}

func TestBuildPrompt(t *testing.T) {
	ja := BuildPrompt("開店準備", "本文", "")
	assert.Contains(t, ja, "マニュアルタイトル: 開店準備")
	assert.Contains(t, ja, "5問")
	assert.NotContains(t, ja, "重要:")

	vi := BuildPrompt("Mở cửa", "nội dung", models.LocaleVietnamese)
	assert.Contains(t, vi, "全てベトナム語 (Tiếng Việt)で作成してください")
}

func TestParseQuiz(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		questions, err := ParseQuiz(quizJSON(5))
		require.NoError(t, err)
		require.Len(t, questions, 5)
		assert.Equal(t, "Q0", questions[0].Question)
		assert.Equal(t, []string{"A4", "B4", "C4", "D4"}, questions[4].Options)
		assert.Equal(t, "A4", questions[4].CorrectAnswer)
	})

	t.Run("fenced json", func(t *testing.T) {
		questions, err := ParseQuiz("```json\n" + quizJSON(5) + "\n```")
		require.NoError(t, err)
		assert.Len(t, questions, 5)
	})

	t.Run("bare fence", func(t *testing.T) {
		_, err := ParseQuiz("```\n" + quizJSON(5) + "\n```")
		assert.NoError(t, err)
	})
}

func TestParseQuiz_Malformed(t *testing.T) {
	valid := `{"question":"Q","options":["a","b","c","d"],"correct_answer":"a","explanation":"e"}`
	withQuestion := func(q string) string {
		items := []string{q, valid, valid, valid, valid}
		return `{"questions":[` + strings.Join(items, ",") + `]}`
	}

	tests := []struct {
		name  string
		reply string
	}{
		{"empty", ""},
		{"prose", "Here is your quiz!"},
		{"truncated", quizJSON(5)[:80]},
		{"four questions", quizJSON(4)},
		{"six questions", quizJSON(6)},
		{"unknown top level field", `{"quiz":[],"questions":[]}`},
		{"trailing object", quizJSON(5) + `{}`},
		{"three options", withQuestion(`{"question":"Q","options":["a","b","c"],"correct_answer":"a","explanation":"e"}`)},
		{"duplicate options", withQuestion(`{"question":"Q","options":["a","a","c","d"],"correct_answer":"a","explanation":"e"}`)},
		{"blank option", withQuestion(`{"question":"Q","options":["a"," ","c","d"],"correct_answer":"a","explanation":"e"}`)},
		{"answer not an option", withQuestion(`{"question":"Q","options":["a","b","c","d"],"correct_answer":"A","explanation":"e"}`)},
		{"missing explanation", withQuestion(`{"question":"Q","options":["a","b","c","d"],"correct_answer":"a"}`)},
		{"missing question", withQuestion(`{"options":["a","b","c","d"],"correct_answer":"a","explanation":"e"}`)},
		{"options not strings", withQuestion(`{"question":"Q","options":[1,2,3,4],"correct_answer":"1","explanation":"e"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			questions, err := ParseQuiz(tt.reply)
			assert.Error(t, err)
			assert.Nil(t, questions)
		})
	}
}
