package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// questionJSON returns n valid question objects as a JSON array.
func questionJSON(n int, prefix string) string {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{
			"question":    fmt.Sprintf("%s question number %d about cells?", prefix, i+1),
			"options":     []string{"Option A", "Option B", "Option C", "Option D"},
			"correct":     i % 4,
			"explanation": "Because the lecture says so.",
			"difficulty":  []string{"easy", "medium", "hard"}[i%3],
			"points":      10,
		}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"bare", `[{"a":1},{"a":2}]`, `[{"a":1},{"a":2}]`, true},
		{"prose_wrapped", "Sure! Here you go:\n[{\"a\":1}]\nHope this helps.", `[{"a":1}]`, true},
		{"markdown_fence", "```json\n[{\"a\":[1,2]}]\n```", `[{"a":[1,2]}]`, true},
		{"bracket_in_string", `x [{"q":"a]b"}, {"q":"c"}] y`, `[{"q":"a]b"}, {"q":"c"}]`, true},
		{"skips_scalar_array", `Use [1] as the key. [{"a":1}]`, `[{"a":1}]`, true},
		{"skips_string_array", `Options ["x","y"] then [{"a":1}]`, `[{"a":1}]`, true},
		{"only_scalars", `[1,2,3]`, "", false},
		{"empty_array", `[]`, "", false},
		{"skips_non_json_bracket", `See [note] below: [{"a":1}]`, `[{"a":1}]`, true},
		{"no_array", `I cannot help with that.`, "", false},
		{"unclosed", `[{"a":1}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONArray(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ExtractJSONArray() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseQuestions_ProseWrapped(t *testing.T) {
	raw := "Here are the questions: " + questionJSON(8, "Mitosis") + "\nLet me know if you need more."

	res, err := ParseQuestions(raw)
	if err != nil {
		t.Fatalf("ParseQuestions: %v", err)
	}
	if len(res.Questions) != 8 {
		t.Fatalf("len(Questions) = %d, want 8", len(res.Questions))
	}
	if res.Dropped != 0 || res.Total != 8 {
		t.Errorf("Total/Dropped = %d/%d, want 8/0", res.Total, res.Dropped)
	}
	for i, q := range res.Questions {
		if len(q.Options) != OptionCount {
			t.Errorf("question %d has %d options", i, len(q.Options))
		}
	}
}

func TestParseQuestions_Validation(t *testing.T) {
	valid := func(overrides map[string]any) string {
		m := map[string]any{
			"question": "What organelle produces ATP?",
			"options":  []string{"Nucleus", "Mitochondria", "Ribosome", "Golgi"},
			"correct":  1,
		}
		for k, v := range overrides {
			if v == nil {
				delete(m, k)
				continue
			}
			m[k] = v
		}
		b, _ := json.Marshal([]any{m})
		return string(b)
	}

	t.Run("defaults_applied", func(t *testing.T) {
		res, err := ParseQuestions(valid(nil))
		if err != nil {
			t.Fatalf("ParseQuestions: %v", err)
		}
		q := res.Questions[0]
		if q.Difficulty != DifficultyMedium {
			t.Errorf("Difficulty = %q, want medium", q.Difficulty)
		}
		if q.Points != DefaultPoints {
			t.Errorf("Points = %d, want %d", q.Points, DefaultPoints)
		}
	})

	t.Run("invalid_difficulty_defaults", func(t *testing.T) {
		res, err := ParseQuestions(valid(map[string]any{"difficulty": "impossible"}))
		if err != nil {
			t.Fatalf("ParseQuestions: %v", err)
		}
		if res.Questions[0].Difficulty != DifficultyMedium {
			t.Errorf("Difficulty = %q, want medium", res.Questions[0].Difficulty)
		}
	})

	t.Run("difficulty_case_insensitive", func(t *testing.T) {
		res, err := ParseQuestions(valid(map[string]any{"difficulty": "HARD"}))
		if err != nil {
			t.Fatalf("ParseQuestions: %v", err)
		}
		if res.Questions[0].Difficulty != DifficultyHard {
			t.Errorf("Difficulty = %q, want hard", res.Questions[0].Difficulty)
		}
	})

	clampTests := []struct {
		name    string
		correct any
		want    int
	}{
		{"correct_above_range_clamped", 7, 3},
		{"correct_below_range_clamped", -2, 0},
		{"correct_numeric_string", "2", 2},
		{"correct_answer_alias", nil, 1},
	}
	for _, tt := range clampTests {
		t.Run(tt.name, func(t *testing.T) {
			over := map[string]any{"correct": tt.correct}
			if tt.correct == nil {
				over["correct_answer"] = 1
			}
			res, err := ParseQuestions(valid(over))
			if err != nil {
				t.Fatalf("ParseQuestions: %v", err)
			}
			if got := res.Questions[0].Correct; got != tt.want {
				t.Errorf("Correct = %d, want %d", got, tt.want)
			}
		})
	}

	rejectTests := []struct {
		name string
		over map[string]any
	}{
		{"short_question", map[string]any{"question": "Why ATP?"}},
		{"short_multibyte_question", map[string]any{"question": "什么是树"}},
		{"missing_question", map[string]any{"question": nil}},
		{"three_options", map[string]any{"options": []string{"a", "b", "c"}}},
		{"five_options", map[string]any{"options": []string{"a", "b", "c", "d", "e"}}},
		{"blank_option", map[string]any{"options": []string{"a", " ", "c", "d"}}},
		{"non_string_option", map[string]any{"options": []any{"a", 2, "c", "d"}}},
		{"fractional_correct", map[string]any{"correct": 1.5}},
		{"missing_correct", map[string]any{"correct": nil}},
	}
	for _, tt := range rejectTests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseQuestions(valid(tt.over))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
			if res == nil || res.Dropped != 1 {
				t.Errorf("res = %+v, want one dropped element", res)
			}
		})
	}
}

func TestParseQuestions_LengthCountsCharacters(t *testing.T) {
	// Twelve characters but 36 bytes.
	q := map[string]any{
		"question": "线粒体产生什么能量分子？",
		"options":  []string{"ATP", "DNA", "RNA", "NADH"},
		"correct":  0,
	}
	b, _ := json.Marshal([]any{q})

	res, err := ParseQuestions(string(b))
	if err != nil {
		t.Fatalf("ParseQuestions: %v", err)
	}
	if len(res.Questions) != 1 {
		t.Errorf("len(Questions) = %d, want 1", len(res.Questions))
	}
}

func TestParseQuestions_ScalarArrayInProse(t *testing.T) {
	raw := "Use [1] as the key. " + questionJSON(1, "Keyed")

	res, err := ParseQuestions(raw)
	if err != nil {
		t.Fatalf("ParseQuestions: %v", err)
	}
	if len(res.Questions) != 1 || res.Total != 1 {
		t.Errorf("questions/total = %d/%d, want 1/1", len(res.Questions), res.Total)
	}
}

func TestParseQuestions_DropsMalformedElement(t *testing.T) {
	var items []any
	_ = json.Unmarshal([]byte(questionJSON(8, "Valid")), &items)
	items = append(items[:4], append([]any{map[string]any{
		"question": "Which of these has only three options?",
		"options":  []string{"one", "two", "three"},
		"correct":  0,
	}}, items[4:]...)...)
	b, _ := json.Marshal(items)

	res, err := ParseQuestions(string(b))
	if err != nil {
		t.Fatalf("ParseQuestions: %v", err)
	}
	if len(res.Questions) != 8 || res.Dropped != 1 || res.Total != 9 {
		t.Errorf("questions/dropped/total = %d/%d/%d, want 8/1/9", len(res.Questions), res.Dropped, res.Total)
	}
}

func TestParseQuestions_NoArray(t *testing.T) {
	_, err := ParseQuestions("I'm sorry, I can't do that.")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if !strings.Contains(pe.Error(), "no JSON array") {
		t.Errorf("Error() = %q", pe.Error())
	}
}
