package quiz

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseError means a model response held no usable questions.
type ParseError struct {
	Reason string
	Raw    string // excerpt of the response
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse quiz response: %s (response: %q)", e.Reason, e.Raw)
}

// ParseResult is the outcome of parsing one model response.
type ParseResult struct {
	Questions []Question
	Total     int // elements found in the array
	Dropped   int // elements rejected by validation
}

// ExtractJSONArray returns the first balanced JSON array of objects in text,
// skipping any surrounding prose. Brackets inside JSON strings are ignored,
// and arrays holding no objects (such as "[1]" in prose) are passed over.
// ok is false if no such array closes.
func ExtractJSONArray(text string) (string, bool) {
	for start := strings.IndexByte(text, '['); start >= 0; {
		if end := matchBracket(text, start); end > start {
			candidate := text[start : end+1]
			if holdsObjects(candidate) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// holdsObjects reports whether candidate is a valid JSON array with at least
// one object element.
func holdsObjects(candidate string) bool {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &elems); err != nil {
		return false
	}
	for _, e := range elems {
		if len(e) > 0 && e[0] == '{' {
			return true
		}
	}
	return false
}

// matchBracket returns the index of the ']' closing the '[' at start, or -1.
func matchBracket(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ParseQuestions extracts and validates questions from a raw model response.
// Elements that fail validation are dropped; a ParseError is returned only if
// no array is found or none of its elements survive.
func ParseQuestions(raw string) (*ParseResult, error) {
	arr, ok := ExtractJSONArray(raw)
	if !ok {
		return nil, &ParseError{Reason: "no JSON array found", Raw: excerpt(raw)}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &elems); err != nil {
		return nil, &ParseError{Reason: "invalid JSON array: " + err.Error(), Raw: excerpt(raw)}
	}

	res := &ParseResult{Total: len(elems)}
	for _, e := range elems {
		q, ok := validate(e)
		if !ok {
			res.Dropped++
			continue
		}
		res.Questions = append(res.Questions, q)
	}
	if len(res.Questions) == 0 {
		return res, &ParseError{Reason: fmt.Sprintf("none of %d elements are valid questions", len(elems)), Raw: excerpt(raw)}
	}
	return res, nil
}

// rawQuestion accepts the key spellings models tend to produce.
type rawQuestion struct {
	Question      *string         `json:"question"`
	Options       []any           `json:"options"`
	Correct       json.RawMessage `json:"correct"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Explanation   string          `json:"explanation"`
	Difficulty    string          `json:"difficulty"`
	Points        *float64        `json:"points"`
}

func validate(raw json.RawMessage) (Question, bool) {
	var r rawQuestion
	if err := json.Unmarshal(raw, &r); err != nil {
		return Question{}, false
	}

	if r.Question == nil {
		return Question{}, false
	}
	text := strings.TrimSpace(*r.Question)
	if utf8.RuneCountInString(text) <= minQuestionLen {
		return Question{}, false
	}

	if len(r.Options) != OptionCount {
		return Question{}, false
	}
	options := make([]string, 0, OptionCount)
	for _, o := range r.Options {
		s, ok := o.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return Question{}, false
		}
		options = append(options, strings.TrimSpace(s))
	}

	correctRaw := r.Correct
	if len(correctRaw) == 0 {
		correctRaw = r.CorrectAnswer
	}
	correct, ok := parseIndex(correctRaw)
	if !ok {
		return Question{}, false
	}

	difficulty := strings.ToLower(strings.TrimSpace(r.Difficulty))
	switch difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		difficulty = DifficultyMedium
	}

	points := DefaultPoints
	if r.Points != nil && *r.Points > 0 && *r.Points == math.Trunc(*r.Points) {
		points = int(*r.Points)
	}

	return Question{
		Question:    text,
		Options:     options,
		Correct:     clampIndex(correct),
		Explanation: strings.TrimSpace(r.Explanation),
		Difficulty:  difficulty,
		Points:      points,
	}, true
}

// parseIndex accepts an integral JSON number or a numeric string.
func parseIndex(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(math.Max(math.Min(n, math.MaxInt32), math.MinInt32)), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		i, err := strconv.Atoi(strings.TrimSpace(s))
		return i, err == nil
	}
	return 0, false
}

func clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i > OptionCount-1 {
		return OptionCount - 1
	}
	return i
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
