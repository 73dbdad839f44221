package cmd

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examforge/examforge/internal/compose"
	"github.com/examforge/examforge/internal/corpus"
	"github.com/examforge/examforge/internal/exam"
)

func TestDefaultsFromFile(t *testing.T) {
	tests := []struct {
		path string
		want corpus.Defaults
	}{
		{"data/CAT_VARC_all_years_combined.json", corpus.Defaults{Exam: "CAT", Section: "VARC"}},
		{"gate_CS_2019.json", corpus.Defaults{Exam: "GATE", Stream: "CS"}},
		{"GATE_General_Aptitude.json", corpus.Defaults{Exam: "GATE", Section: "General"}},
		{"questions.json", corpus.Defaults{}},
		{"JEE_physics.json", corpus.Defaults{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, defaultsFromFile(tt.path), tt.path)
	}
}

func TestDescribeComposeError(t *testing.T) {
	invalid := &compose.Error{Kind: compose.InvalidSpec, Exam: "GATE", Stream: "ZZ", Err: errors.New("unsupported")}
	err := describeComposeError(invalid, exam.DefaultTable())
	assert.ErrorIs(t, err, compose.ErrInvalidSpec)
	assert.Contains(t, err.Error(), "examforge streams")
	assert.Contains(t, err.Error(), "configured exams: CAT, GATE")

	unfillable := &compose.Error{Kind: compose.SlotUnfillable, Exam: "CAT", Section: "QA", Slot: 3, Err: errors.New("no question")}
	err = describeComposeError(unfillable, exam.DefaultTable())
	assert.ErrorIs(t, err, compose.ErrSlotUnfillable)
	assert.Contains(t, err.Error(), "import more QA questions")

	plain := errors.New("disk full")
	assert.Equal(t, plain, describeComposeError(plain, exam.DefaultTable()))
}

func TestStreamsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"streams"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 30)
	assert.Contains(t, out.String(), "CS   Computer Science and Information Technology")
}

func TestCorpusImportAndStats(t *testing.T) {
	dir := t.TempDir()
	db := dir + "/test.db"
	dump := dir + "/CAT_QA_2023.json"
	require.NoError(t, os.WriteFile(dump, []byte(`[
		{"question_text": "What is 2+3?", "option1": "4", "option2": "5", "option3": "6", "option4": "7", "answer": "B", "year": 2023},
		{"question_text": "How many primes are below 10?", "answer": 4, "year": "2023"},
		{"question_text": "", "answer": "x"}
	]`), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	rootCmd.SetArgs([]string{"corpus", "import", "--db", db, dump})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "3 read, 2 inserted, 1 skipped")

	out.Reset()
	rootCmd.SetArgs([]string{"corpus", "stats", "--db", db})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "MCQ")
	assert.Contains(t, out.String(), "TITA")
	assert.Regexp(t, `TOTAL\s+2`, out.String())
}

func TestComposeInvalidSpecBeforeCredentials(t *testing.T) {
	for _, k := range []string{
		"EXAMFORGE_LLM_PROVIDER", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY",
	} {
		t.Setenv(k, "")
	}
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"compose", "--db", t.TempDir() + "/test.db", "--exam", "GATE", "--stream", "ZZ"})
	err := rootCmd.Execute()
	require.ErrorIs(t, err, compose.ErrInvalidSpec)
	assert.Contains(t, err.Error(), "ZZ")
}
