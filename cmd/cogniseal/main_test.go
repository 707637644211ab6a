package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

const sampleExam = `
title: Basic Math Test
description: A simple math test
passing_score: 2
max_attempts: 3
cooldown_minutes: 5
questions:
  - text: What is 2+2?
    type: multiple_choice
    options: ["3", "4", "5", "6"]
    answer: 2
  - text: Capital of France?
    type: fill_in_blank
    answer: Paris
`

func TestParseExamFile(t *testing.T) {
	draft, err := parseExamFile([]byte(sampleExam))
	require.NoError(t, err)

	assert.Equal(t, "Basic Math Test", draft.Title)
	assert.Equal(t, uint32(2), draft.PassingScore)
	assert.Equal(t, uint32(3), draft.MaxAttempts)
	assert.Equal(t, uint32(5), draft.CooldownMinutes)
	require.Len(t, draft.Questions, 2)
	assert.Equal(t, model.QuestionTypeMultipleChoice, draft.Questions[0].Type)
	assert.Equal(t, "2", draft.Questions[0].Answer)
	assert.Equal(t, []string{"3", "4", "5", "6"}, draft.Questions[0].Options)
	assert.Equal(t, model.QuestionTypeFillInBlank, draft.Questions[1].Type)
	assert.Equal(t, "Paris", draft.Questions[1].Answer)
}

func TestParseExamFileErrors(t *testing.T) {
	cases := map[string]string{
		"no questions": "title: Empty\n",
		"bad type":     "title: X\nquestions:\n  - text: Q\n    type: essay\n    answer: x\n",
		"five options": "title: X\nquestions:\n  - text: Q\n    options: [a, b, c, d, e]\n    answer: 1\n",
		"not yaml":     "title: [unclosed\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseExamFile([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node: http://ledger.test:9000/\nkeystore: /tmp/k.json\n"), 0o600))

	t.Run("file", func(t *testing.T) {
		p, err := loadProfile(path)
		require.NoError(t, err)
		assert.Equal(t, "http://ledger.test:9000", p.Node)
		assert.Equal(t, "/tmp/k.json", p.Keystore)
		assert.Equal(t, "warn", p.LogLevel)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("COGNISEAL_NODE", "http://other:8080")
		t.Setenv("COGNISEAL_SIGNATURE_CACHE", "/tmp/sigs.json")
		p, err := loadProfile(path)
		require.NoError(t, err)
		assert.Equal(t, "http://other:8080", p.Node)
		assert.Equal(t, "/tmp/sigs.json", p.SignatureCache)
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		p, err := loadProfile(filepath.Join(dir, "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", p.Node)
	})
}

func TestStreamURL(t *testing.T) {
	u, err := streamURL("https://ledger.test/base/", "ExamCreated", 3, "")
	require.NoError(t, err)
	assert.Equal(t, "wss://ledger.test/base/ws/v1/logs?event=ExamCreated&exam_id=3", u)

	u, err = streamURL("http://localhost:8080", "", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/v1/logs", u)
}

func TestNormalizeChoice(t *testing.T) {
	assert.Equal(t, "3", normalizeChoice(model.QuestionTypeMultipleChoice, "c"))
	assert.Equal(t, "2", normalizeChoice(model.QuestionTypeMultipleChoice, "2"))
	assert.Equal(t, "b", normalizeChoice(model.QuestionTypeFillInBlank, "b"))
}
