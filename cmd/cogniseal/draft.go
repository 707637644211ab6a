package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cogniseal/cogniseal-ledger/internal/client"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

// examFile is the YAML exam definition accepted by `cogniseal create`.
//
//	title: Basic Math Test
//	passing_score: 2
//	max_attempts: 3
//	questions:
//	  - text: What is 2+2?
//	    type: multiple_choice
//	    options: ["3", "4", "5", "6"]
//	    answer: 2
//	  - text: Capital of France?
//	    type: fill_in_blank
//	    answer: Paris
type examFile struct {
	Title            string         `yaml:"title"`
	Description      string         `yaml:"description"`
	PassingScore     uint32         `yaml:"passing_score"`
	TimeLimitMinutes uint32         `yaml:"time_limit_minutes"`
	MaxAttempts      uint32         `yaml:"max_attempts"`
	CooldownMinutes  uint32         `yaml:"cooldown_minutes"`
	Questions        []questionFile `yaml:"questions"`
}

type questionFile struct {
	Text    string   `yaml:"text"`
	Type    string   `yaml:"type"`
	Options []string `yaml:"options"`
	Answer  string   `yaml:"answer"`
}

func parseQuestionType(s string) (model.QuestionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "multiple_choice", "mc", "0":
		return model.QuestionTypeMultipleChoice, nil
	case "fill_in_blank", "fib", "1":
		return model.QuestionTypeFillInBlank, nil
	default:
		return 0, fmt.Errorf("unknown question type %q", s)
	}
}

// parseExamFile decodes a YAML exam definition. Ledger rules (passing score
// range, attempt limits) are left to the ledger so its revert reason is shown.
func parseExamFile(raw []byte) (client.ExamDraft, error) {
	var f examFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return client.ExamDraft{}, fmt.Errorf("decode exam file: %w", err)
	}
	if len(f.Questions) == 0 {
		return client.ExamDraft{}, errors.New("exam file has no questions")
	}

	draft := client.ExamDraft{
		Title:            f.Title,
		Description:      f.Description,
		PassingScore:     f.PassingScore,
		TimeLimitMinutes: f.TimeLimitMinutes,
		MaxAttempts:      f.MaxAttempts,
		CooldownMinutes:  f.CooldownMinutes,
	}
	for i, q := range f.Questions {
		t, err := parseQuestionType(q.Type)
		if err != nil {
			return client.ExamDraft{}, fmt.Errorf("question %d: %w", i+1, err)
		}
		if t == model.QuestionTypeMultipleChoice && len(q.Options) > len(client.OptionSlots()) {
			return client.ExamDraft{}, fmt.Errorf("question %d: at most %d options", i+1, len(client.OptionSlots()))
		}
		draft.Questions = append(draft.Questions, client.DraftQuestion{
			Text:    q.Text,
			Type:    t,
			Options: q.Options,
			Answer:  q.Answer,
		})
	}
	return draft, nil
}

func loadExamFile(path string) (client.ExamDraft, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return client.ExamDraft{}, err
	}
	return parseExamFile(raw)
}
