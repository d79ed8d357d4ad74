// File path: internal/postgres/importer_test.go
package postgres

import (
	"strings"
	"testing"
	"time"

	"teaching-stats/internal/report"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		name  string
		value string
		max   int
		want  string
	}{
		{"shorter than limit", "CF", 3, "CF"},
		{"exactly at limit", "DAM", 3, "DAM"},
		{"over limit", "DAMVI", 3, "DAM"},
		{"empty input", "", 3, ""},
		{"zero limit", "DAM", 0, ""},
		{"multibyte runes", "Informàtica", 8, "Informàt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := truncate(tc.value, tc.max); got != tc.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tc.value, tc.max, got, tc.want)
			}
		})
	}
}

func TestTruncateIdempotent(t *testing.T) {
	once := truncate("Administració i gestió de sistemes informàtics en xarxa", maxTopic)
	twice := truncate(once, maxTopic)
	if once != twice {
		t.Fatalf("truncation is not idempotent: %q vs %q", once, twice)
	}
}

func TestBoundAnswer(t *testing.T) {
	long := strings.Repeat("x", 200)
	bounded := boundAnswer(report.Answer{
		Level:        long,
		Department:   long,
		Degree:       long,
		Group:        long,
		SubjectCode:  long,
		SubjectName:  long,
		Trainer:      long,
		Topic:        long,
		QuestionType: report.QuestionType(long),
	})
	checks := []struct {
		name  string
		value string
		max   int
	}{
		{"level", bounded.Level, maxLevel},
		{"department", bounded.Department, maxDepartment},
		{"degree", bounded.Degree, maxDegree},
		{"group", bounded.Group, maxGroup},
		{"subject code", bounded.SubjectCode, maxSubjectCode},
		{"subject name", bounded.SubjectName, maxSubjectName},
		{"trainer", bounded.Trainer, maxTrainer},
		{"topic", bounded.Topic, maxTopic},
		{"question type", string(bounded.QuestionType), maxQuestionType},
	}
	for _, check := range checks {
		if len([]rune(check.value)) != check.max {
			t.Fatalf("%s: expected length %d, got %d", check.name, check.max, len([]rune(check.value)))
		}
	}
}

func TestPrepareAnswersGrouping(t *testing.T) {
	ts := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	records := []report.Answer{
		{QuestionSort: 1, Timestamp: ts},
		{QuestionSort: 2, Timestamp: ts},
		{QuestionSort: 3, Timestamp: ts},
		{QuestionSort: 1, Timestamp: ts},
		{QuestionSort: 2, Timestamp: ts},
		{QuestionSort: 1, Timestamp: ts},
	}

	prepared := prepareAnswers(records, 214)

	wantIDs := []int{215, 215, 215, 216, 216, 217}
	for i, record := range prepared {
		if record.EvaluationID != wantIDs[i] {
			t.Fatalf("record %d: expected evaluation id %d, got %d", i, wantIDs[i], record.EvaluationID)
		}
	}
	for i, record := range records {
		if record.EvaluationID != 0 {
			t.Fatalf("input record %d mutated: evaluation id %d", i, record.EvaluationID)
		}
	}
}

func TestPrepareAnswersAboveExistingMax(t *testing.T) {
	records := []report.Answer{
		{QuestionSort: 1},
		{QuestionSort: 1},
	}
	prepared := prepareAnswers(records, 0)
	if prepared[0].EvaluationID != 1 || prepared[1].EvaluationID != 2 {
		t.Fatalf("unexpected identifiers from empty table: %d, %d",
			prepared[0].EvaluationID, prepared[1].EvaluationID)
	}

	prepared = prepareAnswers(records, 90)
	for i, record := range prepared {
		if record.EvaluationID <= 90 {
			t.Fatalf("record %d: identifier %d not above existing max", i, record.EvaluationID)
		}
	}
	if prepared[1].EvaluationID <= prepared[0].EvaluationID {
		t.Fatalf("identifiers not strictly increasing across groups: %d, %d",
			prepared[0].EvaluationID, prepared[1].EvaluationID)
	}
}
