// File path: internal/report/normalize.go
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedResponse marks a respondent entry without the expected answer-group shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMissingStatement marks a response referencing a question code absent from metadata.
	ErrMissingStatement = errors.New("missing question statement")
)

const (
	numericPrefix   = "questions"
	commentPrefix   = "comments"
	submitDateField = "submitdate"
	timestampLayout = "2006-01-02 15:04:05"
)

// timeNow is swapped in tests exercising the submit-date fallback.
var timeNow = time.Now

// numericAnswer is a scored answer decoded from a "questions[CODE]" field.
type numericAnswer struct {
	field string
	code  string
	value string
}

// commentAnswer is a free-text answer decoded from a "commentsN" field; the whole
// field name doubles as the question code.
type commentAnswer struct {
	field string
	value string
}

// Normalize flattens a raw survey export into ordered Answer records. It is a pure
// transformation: no I/O, deterministic for a given payload. Question sort restarts
// at 1 for every respondent, numbering scored answers before comments, each class
// ordered by field name. Either every respondent normalizes or the whole call fails.
func Normalize(questions []Question, payload ResponsePayload) ([]Answer, error) {
	statements := make(map[string]string, len(questions))
	for _, q := range questions {
		statements[q.Code] = q.Statement
	}

	var records []Answer
	for idx, respondent := range payload.Responses {
		group, err := answerGroup(respondent)
		if err != nil {
			return nil, fmt.Errorf("response %d: %w", idx, err)
		}

		numeric, comments, err := classifyFields(group)
		if err != nil {
			return nil, fmt.Errorf("response %d: %w", idx, err)
		}

		ts := submitTimestamp(group)
		shared := Answer{
			Timestamp:   ts,
			Year:        ts.Year(),
			Level:       fieldString(group, "level"),
			Department:  fieldString(group, "department"),
			Degree:      fieldString(group, "degree"),
			Group:       fieldString(group, "group"),
			SubjectCode: fieldString(group, "subjectcode"),
			SubjectName: fieldString(group, "subjectname"),
			Trainer:     fieldString(group, "trainer"),
			Topic:       fieldString(group, "topic"),
		}

		sorting := 1
		for _, ans := range numeric {
			statement, ok := statements[ans.code]
			if !ok {
				return nil, fmt.Errorf("response %d field %s: %w: code %q", idx, ans.field, ErrMissingStatement, ans.code)
			}
			record := shared
			record.QuestionSort = sorting
			record.QuestionType = Numeric
			record.QuestionStatement = statement
			record.Value = ans.value
			records = append(records, record)
			sorting++
		}
		for _, ans := range comments {
			record := shared
			record.QuestionSort = sorting
			record.QuestionType = Text
			// Comment fields are their own code; exports omit them from the question
			// metadata, so an absent statement stays empty instead of failing.
			record.QuestionStatement = statements[ans.field]
			record.Value = ans.value
			records = append(records, record)
			sorting++
		}
	}
	return records, nil
}

// answerGroup locates and decodes the single digit-keyed answer-group object of a
// respondent entry.
func answerGroup(respondent Respondent) (map[string]interface{}, error) {
	keys := make([]string, 0, 1)
	for key := range respondent {
		if isDigits(key) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: answer group missing", ErrMalformedResponse)
	}
	sort.Strings(keys)

	var group map[string]interface{}
	if err := json.Unmarshal(respondent[keys[0]], &group); err != nil {
		return nil, fmt.Errorf("%w: answer group %q is not an object", ErrMalformedResponse, keys[0])
	}
	return group, nil
}

// classifyFields partitions the answered fields into the two known variants once, so
// nothing downstream re-inspects raw field names. Fields matching neither prefix are
// the shared dimensional/timestamp fields and are skipped here.
func classifyFields(group map[string]interface{}) ([]numericAnswer, []commentAnswer, error) {
	var numeric []numericAnswer
	var comments []commentAnswer
	for name, value := range group {
		switch {
		case strings.HasPrefix(name, numericPrefix):
			code, err := bracketCode(name)
			if err != nil {
				return nil, nil, err
			}
			numeric = append(numeric, numericAnswer{field: name, code: code, value: valueString(value)})
		case strings.HasPrefix(name, commentPrefix):
			comments = append(comments, commentAnswer{field: name, value: valueString(value)})
		}
	}
	sort.Slice(numeric, func(i, j int) bool { return numeric[i].field < numeric[j].field })
	sort.Slice(comments, func(i, j int) bool { return comments[i].field < comments[j].field })
	return numeric, comments, nil
}

// bracketCode extracts the question code from a "questions[CODE]" field name.
func bracketCode(field string) (string, error) {
	start := strings.IndexByte(field, '[')
	end := strings.IndexByte(field, ']')
	if start < 0 || end < start+1 {
		return "", fmt.Errorf("%w: field %q has no bracketed question code", ErrMalformedResponse, field)
	}
	return field[start+1 : end], nil
}

// submitTimestamp resolves the submission instant, falling back to the processing
// instant when the field is absent or unparsable.
func submitTimestamp(group map[string]interface{}) time.Time {
	raw := fieldString(group, submitDateField)
	if ts, err := time.Parse(timestampLayout, raw); err == nil {
		return ts
	}
	return timeNow()
}

func fieldString(group map[string]interface{}, name string) string {
	value, ok := group[name]
	if !ok {
		return ""
	}
	return valueString(value)
}

func valueString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
