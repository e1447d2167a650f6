// Package event turns raw client payloads into validated completion events.
// It never touches storage.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/digkill/StageRank/internal/models"
)

const MaxUserIDLength = 64

var stageCodePattern = regexp.MustCompile(`^[A-E][1-5]$`)

// FieldError describes one problem with one payload field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field problem found in a payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidStageCode reports whether code looks like a catalog stage code.
func ValidStageCode(code string) bool {
	return stageCodePattern.MatchString(code)
}

// ValidUserID reports whether id is acceptable as a user identifier.
func ValidUserID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && utf8.RuneCountInString(id) <= MaxUserIDLength
}

// Parse decodes and validates a completion payload.
func Parse(raw []byte) (models.CompletionEvent, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		verr := &ValidationError{}
		verr.add("_payload", "must be a JSON object")
		return models.CompletionEvent{}, verr
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		verr := &ValidationError{}
		verr.add("_payload", "must contain a single JSON object")
		return models.CompletionEvent{}, verr
	}

	verr := &ValidationError{}
	var ev models.CompletionEvent

	if userID, ok := stringField(verr, fields, "user_id"); ok {
		userID = strings.TrimSpace(userID)
		switch {
		case userID == "":
			verr.add("user_id", "must not be empty")
		case utf8.RuneCountInString(userID) > MaxUserIDLength:
			verr.add("user_id", "must be at most %d characters", MaxUserIDLength)
		default:
			ev.UserID = userID
		}
	}

	if code, ok := stringField(verr, fields, "stage_code"); ok {
		if !ValidStageCode(code) {
			verr.add("stage_code", "must match [A-E][1-5]")
		} else {
			ev.StageCode = code
		}
	}

	if n, ok := nonNegativeIntField(verr, fields, "prompt_length", math.MaxInt32); ok {
		ev.PromptLength = int(n)
	}
	if n, ok := nonNegativeIntField(verr, fields, "clear_time_ms", math.MaxInt64); ok {
		ev.ClearTimeMs = n
	}

	if len(verr.Fields) > 0 {
		sort.SliceStable(verr.Fields, func(i, j int) bool { return verr.Fields[i].Field < verr.Fields[j].Field })
		return models.CompletionEvent{}, verr
	}
	return ev, nil
}

func stringField(verr *ValidationError, fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		verr.add(name, "is required")
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		verr.add(name, "must be a string")
		return "", false
	}
	return s, true
}

func nonNegativeIntField(verr *ValidationError, fields map[string]json.RawMessage, name string, max int64) (int64, bool) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		verr.add(name, "is required")
		return 0, false
	}
	var num json.Number
	// json.Number also accepts quoted numbers, which are the wrong type here.
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)) {
		verr.add(name, "must be an integer")
		return 0, false
	}
	if err := json.Unmarshal(raw, &num); err != nil {
		verr.add(name, "must be an integer")
		return 0, false
	}
	n, err := num.Int64()
	if err != nil {
		verr.add(name, "must be an integer")
		return 0, false
	}
	if n < 0 {
		verr.add(name, "must be greater than or equal to 0")
		return 0, false
	}
	if n > max {
		verr.add(name, "must be at most %d", max)
		return 0, false
	}
	return n, true
}
