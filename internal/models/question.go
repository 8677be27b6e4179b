package models

import (
	"time"
)

type QuestionType string

const (
	SingleSelect QuestionType = "single_select"
	MultiSelect  QuestionType = "multi_select"
	Numeric      QuestionType = "numeric"
	ShortText    QuestionType = "short_text"
	LongText     QuestionType = "long_text"
)

// IsSelectType reports whether the question type carries an option list.
func (t QuestionType) IsSelectType() bool {
	return t == SingleSelect || t == MultiSelect
}

// IsTextType reports whether the question is answered with free text and
// therefore requires manual grading.
func (t QuestionType) IsTextType() bool {
	return t == ShortText || t == LongText
}

type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	TestID uint         `json:"test_id" gorm:"not null;index"`
	Type   QuestionType `json:"type" gorm:"not null;index" validate:"required,oneof=single_select multi_select numeric short_text long_text"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`
	Points float64      `json:"points" gorm:"not null" validate:"required,gt=0"`
	Order  int          `json:"order" gorm:"not null;default:0"`

	// Shown only under full disclosure
	Explanation *string `json:"explanation,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Options []QuestionOption `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
}

// OptionIDSet returns the question's valid option ids for membership checks.
func (q *Question) OptionIDSet() map[uint]bool {
	set := make(map[uint]bool, len(q.Options))
	for _, opt := range q.Options {
		set[opt.ID] = true
	}
	return set
}

// CorrectOptionIDs returns the ids of options marked correct, in option order.
func (q *Question) CorrectOptionIDs() []uint {
	var ids []uint
	for _, opt := range q.Options {
		if opt.IsCorrect {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

type QuestionOption struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"type:text;not null" validate:"required"`
	Order      int    `json:"order" gorm:"not null;default:0"`

	// Never serialized on taker-facing reads; stripped by the sanitizer.
	IsCorrect bool `json:"is_correct,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Numeric questions store their expected value alongside the question so the
// grader can score them without an option list.
type NumericAnswerKey struct {
	QuestionID uint    `json:"question_id" gorm:"primaryKey"`
	Expected   float64 `json:"expected" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

func (QuestionOption) TableName() string {
	return "question_options"
}

func (NumericAnswerKey) TableName() string {
	return "numeric_answer_keys"
}
