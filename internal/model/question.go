package model

import (
	"encoding/json"
)

// Question is a single exam question as seen by a student (no answer key).
type Question struct {
	ID      string          `json:"id" validate:"required"`
	Type    QuestionType    `json:"question_type" validate:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER"`
	Prompt  string          `json:"question_text"`
	Options json.RawMessage `json:"options,omitempty"`
	Points  float64         `json:"points" validate:"gte=0"`
}

// QuestionType decides how an answer string is interpreted: an option letter,
// "True"/"False", or free text.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
)
