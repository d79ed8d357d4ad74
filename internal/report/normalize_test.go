// File path: internal/report/normalize_test.go
package report

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func decodePayload(t *testing.T, raw string) ResponsePayload {
	t.Helper()
	var payload ResponsePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload
}

func TestNormalizeExample(t *testing.T) {
	questions := []Question{{Code: "Q1", Statement: "Rate the course"}}
	payload := decodePayload(t, `{"responses":[{"1":{
                "questions[Q1]": "5",
                "comments1": "great",
                "submitdate": "2023-05-01 10:00:00",
                "level": "CF",
                "department": "Informàtica i comunicacions",
                "degree": "DAM",
                "group": "DAM-2A",
                "subjectcode": "MP06",
                "subjectname": "Accés a dades",
                "trainer": "Jane Doe",
                "topic": "Assignatura"
        }}]}`)

	records, err := Normalize(questions, payload)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.QuestionSort != 1 || first.Value != "5" || first.QuestionType != Numeric {
		t.Fatalf("unexpected numeric record: %+v", first)
	}
	if first.QuestionStatement != "Rate the course" {
		t.Fatalf("unexpected statement: %q", first.QuestionStatement)
	}
	if first.Year != 2023 {
		t.Fatalf("expected year 2023, got %d", first.Year)
	}
	want := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(want) {
		t.Fatalf("unexpected timestamp: %v", first.Timestamp)
	}

	second := records[1]
	if second.QuestionSort != 2 || second.Value != "great" || second.QuestionType != Text {
		t.Fatalf("unexpected comment record: %+v", second)
	}
	if second.Year != 2023 {
		t.Fatalf("expected year 2023, got %d", second.Year)
	}

	for i, record := range records {
		if record.Level != "CF" || record.Department != "Informàtica i comunicacions" ||
			record.Degree != "DAM" || record.Group != "DAM-2A" ||
			record.SubjectCode != "MP06" || record.SubjectName != "Accés a dades" ||
			record.Trainer != "Jane Doe" || record.Topic != "Assignatura" {
			t.Fatalf("record %d lost dimensional fields: %+v", i, record)
		}
	}
}

func TestNormalizeSortOrder(t *testing.T) {
	questions := []Question{
		{Code: "Q1", Statement: "one"},
		{Code: "Q2", Statement: "two"},
		{Code: "Q3", Statement: "three"},
	}
	payload := decodePayload(t, `{"responses":[{"1":{
                "questions[Q3]": "3",
                "questions[Q1]": "1",
                "questions[Q2]": "2",
                "comments2": "b",
                "comments1": "a",
                "submitdate": "2023-05-01 10:00:00"
        }}]}`)

	records, err := Normalize(questions, payload)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}

	wantValues := []string{"1", "2", "3", "a", "b"}
	wantTypes := []QuestionType{Numeric, Numeric, Numeric, Text, Text}
	for i, record := range records {
		if record.QuestionSort != i+1 {
			t.Fatalf("record %d: expected sort %d, got %d", i, i+1, record.QuestionSort)
		}
		if record.Value != wantValues[i] {
			t.Fatalf("record %d: expected value %q, got %q", i, wantValues[i], record.Value)
		}
		if record.QuestionType != wantTypes[i] {
			t.Fatalf("record %d: expected type %s, got %s", i, wantTypes[i], record.QuestionType)
		}
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	questions := []Question{
		{Code: "Q1", Statement: "one"},
		{Code: "Q2", Statement: "two"},
	}
	raw := `{"responses":[
                {"1":{"questions[Q2]": "4", "questions[Q1]": "5", "comments1": "x", "submitdate": "2023-05-01 10:00:00"}},
                {"1":{"questions[Q1]": "2", "submitdate": "2023-06-01 09:30:00"}}
        ]}`

	first, err := Normalize(questions, decodePayload(t, raw))
	if err != nil {
		t.Fatalf("first normalize failed: %v", err)
	}
	second, err := Normalize(questions, decodePayload(t, raw))
	if err != nil {
		t.Fatalf("second normalize failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestNormalizeSortRestartsPerRespondent(t *testing.T) {
	questions := []Question{{Code: "Q1", Statement: "one"}}
	payload := decodePayload(t, `{"responses":[
                {"1":{"questions[Q1]": "5", "comments1": "x", "submitdate": "2023-05-01 10:00:00"}},
                {"1":{"questions[Q1]": "3", "submitdate": "2023-05-01 11:00:00"}}
        ]}`)

	records, err := Normalize(questions, payload)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[2].QuestionSort != 1 {
		t.Fatalf("expected sort to restart at 1, got %d", records[2].QuestionSort)
	}
}

func TestNormalizeMissingStatement(t *testing.T) {
	questions := []Question{
		{Code: "Q1", Statement: "one"},
		{Code: "Q2", Statement: "two"},
		{Code: "Q3", Statement: "three"},
		{Code: "Q4", Statement: "four"},
		{Code: "Q5", Statement: "five"},
	}
	payload := decodePayload(t, `{"responses":[{"1":{
                "questions[Q99]": "5",
                "submitdate": "2023-05-01 10:00:00"
        }}]}`)

	records, err := Normalize(questions, payload)
	if !errors.Is(err, ErrMissingStatement) {
		t.Fatalf("expected ErrMissingStatement, got %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected zero records on failure, got %d", len(records))
	}
}

func TestNormalizeMalformedResponse(t *testing.T) {
	questions := []Question{{Code: "Q1", Statement: "one"}}

	cases := []struct {
		name string
		raw  string
	}{
		{"missing group", `{"responses":[{"id":"7"}]}`},
		{"group not an object", `{"responses":[{"1":"nope"}]}`},
		{"unbracketed numeric field", `{"responses":[{"1":{"questionsQ1": "5"}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records, err := Normalize(questions, decodePayload(t, tc.raw))
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			if records != nil {
				t.Fatalf("expected no records, got %d", len(records))
			}
		})
	}
}

func TestNormalizeTimestampFallback(t *testing.T) {
	fixed := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)
	previous := timeNow
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = previous }()

	questions := []Question{{Code: "Q1", Statement: "one"}}
	payload := decodePayload(t, `{"responses":[{"1":{
                "questions[Q1]": "5",
                "submitdate": "not a date"
        }}]}`)

	records, err := Normalize(questions, payload)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !records[0].Timestamp.Equal(fixed) {
		t.Fatalf("expected fallback timestamp %v, got %v", fixed, records[0].Timestamp)
	}
	if records[0].Year != 2024 {
		t.Fatalf("expected fallback year 2024, got %d", records[0].Year)
	}
}
