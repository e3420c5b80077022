package examfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validExam = `{
	"title": "Pecahan Dasar",
	"subject": "Matematika",
	"grade": "5",
	"duration": 30,
	"questions": [
		{
			"question_text": "1/2 + 1/4 = ?",
			"options": ["3/4", "2/6", "1/8"],
			"correct_answer": "3/4",
			"topic": "Penjumlahan pecahan"
		},
		{
			"question_text": "Manakah yang lebih besar?",
			"options": ["1/3", "1/2"],
			"correct_answer": "1/2"
		}
	]
}`

func TestParse_Valid(t *testing.T) {
	req, err := Parse([]byte(validExam))
	require.NoError(t, err)

	assert.Equal(t, "Pecahan Dasar", req.Title)
	assert.Equal(t, 30, req.Duration)
	require.Len(t, req.Questions, 2)
	assert.Equal(t, "Penjumlahan pecahan", req.Questions[0].Topic)
	assert.Equal(t, []string{"1/3", "1/2"}, req.Questions[1].Options)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"title":`,
		"missing title":  `{"questions":[{"question_text":"q","options":["a","b"],"correct_answer":"a"}]}`,
		"no questions":   `{"title":"Ujian","questions":[]}`,
		"single option":  `{"title":"Ujian","questions":[{"question_text":"q","options":["a"],"correct_answer":"a"}]}`,
		"repeat options": `{"title":"Ujian","questions":[{"question_text":"q","options":["a","a"],"correct_answer":"a"}]}`,
		"bad duration":   `{"title":"Ujian","duration":-5,"questions":[{"question_text":"q","options":["a","b"],"correct_answer":"a"}]}`,
		"answer missing": `{"title":"Ujian","questions":[{"question_text":"q","options":["a","b"],"correct_answer":"c"}]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.ErrorIs(t, err, ErrInvalidExam)
		})
	}
}
