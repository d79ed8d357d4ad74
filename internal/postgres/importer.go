// File path: internal/postgres/importer.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"teaching-stats/internal/report"
)

// Column widths enforced by the reports.answer schema. Oversized values are cut
// silently before the batch write.
const (
	maxLevel        = 3
	maxDegree       = 4
	maxSubjectCode  = 10
	maxGroup        = 11
	maxTopic        = 25
	maxQuestionType = 25
	maxDepartment   = 75
	maxSubjectName  = 75
	maxTrainer      = 75
)

const maxEvaluationIDQuery = `SELECT COALESCE(MAX(evaluation_id), 0) FROM reports.answer`

const insertAnswerQuery = `
        INSERT INTO reports.answer (
                evaluation_id, "timestamp", "year", "level", department, degree, "group",
                subject_code, subject_name, trainer, topic,
                question_sort, question_type, question_statement, value
        ) VALUES (
                :evaluation_id, :timestamp, :year, :level, :department, :degree, :group,
                :subject_code, :subject_name, :trainer, :topic,
                :question_sort, :question_type, :question_statement, :value
        )`

// ImportAnswers persists normalized answer records as one batch inside one
// transaction and returns the number of rows written. Evaluation identifiers are
// allocated above the current table maximum: one identifier per submission group,
// strictly increasing across groups. Nothing is written when any part fails.
func (s *Store) ImportAnswers(ctx context.Context, records []report.Answer) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	var count int
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var lastID int
		if err := tx.GetContext(ctx, &lastID, maxEvaluationIDQuery); err != nil {
			return fmt.Errorf("load last evaluation id: %w", err)
		}
		prepared := prepareAnswers(records, lastID)
		if _, err := tx.NamedExecContext(ctx, insertAnswerQuery, prepared); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}
		count = len(prepared)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// prepareAnswers assigns evaluation identifiers and bounds text fields. The
// normalizer keeps each submission's records contiguous with question sort
// restarting at 1, so a sort of 1 opens a new identifier group.
func prepareAnswers(records []report.Answer, lastID int) []report.Answer {
	prepared := make([]report.Answer, len(records))
	id := lastID
	for i, record := range records {
		if i == 0 || record.QuestionSort == 1 {
			id++
		}
		record.EvaluationID = id
		prepared[i] = boundAnswer(record)
	}
	return prepared
}

func boundAnswer(a report.Answer) report.Answer {
	a.Level = truncate(a.Level, maxLevel)
	a.Department = truncate(a.Department, maxDepartment)
	a.Degree = truncate(a.Degree, maxDegree)
	a.Group = truncate(a.Group, maxGroup)
	a.SubjectCode = truncate(a.SubjectCode, maxSubjectCode)
	a.SubjectName = truncate(a.SubjectName, maxSubjectName)
	a.Trainer = truncate(a.Trainer, maxTrainer)
	a.Topic = truncate(a.Topic, maxTopic)
	a.QuestionType = report.QuestionType(truncate(string(a.QuestionType), maxQuestionType))
	return a
}

func truncate(value string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
