// File path: internal/report/types.go
package report

import (
	"encoding/json"
	"time"
)

// QuestionType distinguishes scored answers from free-text comments.
type QuestionType string

const (
	Numeric QuestionType = "Numeric"
	Text    QuestionType = "Text"
)

// Question carries the metadata needed to resolve a response code to its statement.
type Question struct {
	Code      string `json:"title"`
	Statement string `json:"question"`
}

// Answer represents one respondent's answer to one question within one evaluation,
// flattened to the shape of the reports.answer table.
type Answer struct {
	EvaluationID      int          `db:"evaluation_id"`
	Timestamp         time.Time    `db:"timestamp"`
	Year              int          `db:"year"`
	Level             string       `db:"level"`
	Department        string       `db:"department"`
	Degree            string       `db:"degree"`
	Group             string       `db:"group"`
	SubjectCode       string       `db:"subject_code"`
	SubjectName       string       `db:"subject_name"`
	Trainer           string       `db:"trainer"`
	Topic             string       `db:"topic"`
	QuestionSort      int          `db:"question_sort"`
	QuestionType      QuestionType `db:"question_type"`
	QuestionStatement string       `db:"question_statement"`
	Value             string       `db:"value"`
}

// ResponsePayload mirrors the survey service export: a list of per-respondent objects.
type ResponsePayload struct {
	Responses []Respondent `json:"responses"`
}

// Respondent is one raw per-respondent export entry. The accepted shape contains a
// single digit-keyed answer-group object holding the answered fields, the shared
// dimensional fields and the submission timestamp.
type Respondent map[string]json.RawMessage
