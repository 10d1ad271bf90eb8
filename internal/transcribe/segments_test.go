package transcribe

import (
	"math"
	"strings"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestNormalize(t *testing.T) {
	t.Run("nil_response", func(t *testing.T) {
		r := Normalize(nil, "en")
		if r.Text != "" || len(r.Segments) != 0 {
			t.Errorf("Normalize(nil) = %+v, want empty result", r)
		}
	})

	t.Run("vendor_segments_win", func(t *testing.T) {
		r := Normalize(&Response{
			Text: "Hello there. General Kenobi.",
			Segments: []Segment{
				{Start: 0, End: 1, Text: " Hello there. ", Confidence: f64(0.9)},
				{Start: 1, End: 2, Text: "   "},
				{Start: 2, End: 3, Text: "General Kenobi.", Confidence: f64(0.7)},
			},
			Words: []Word{{Word: "ignored", Start: 0, End: 1}},
		}, "en")

		if len(r.Segments) != 2 {
			t.Fatalf("len(Segments) = %d, want 2", len(r.Segments))
		}
		if r.Segments[0].Text != "Hello there." {
			t.Errorf("Segments[0].Text = %q, want %q", r.Segments[0].Text, "Hello there.")
		}
		if math.Abs(r.Confidence-0.8) > 1e-9 {
			t.Errorf("Confidence = %v, want 0.8", r.Confidence)
		}
		if r.Language != "en" {
			t.Errorf("Language = %q, want en (default)", r.Language)
		}
	})

	t.Run("provider_confidence_clamped", func(t *testing.T) {
		r := Normalize(&Response{Text: "hi", Confidence: f64(1.7)}, "")
		if r.Confidence != 1 {
			t.Errorf("Confidence = %v, want 1", r.Confidence)
		}
	})

	t.Run("no_confidence_anywhere", func(t *testing.T) {
		r := Normalize(&Response{Text: "hi", Language: "de"}, "en")
		if r.Confidence != 0 {
			t.Errorf("Confidence = %v, want 0", r.Confidence)
		}
		if r.Language != "de" {
			t.Errorf("Language = %q, want de", r.Language)
		}
		if r.Segments == nil {
			t.Error("Segments = nil, want empty slice")
		}
	})

	t.Run("text_rebuilt_from_segments", func(t *testing.T) {
		r := Normalize(&Response{Segments: []Segment{{Text: "one"}, {Text: "two"}}}, "")
		if r.Text != "one two" {
			t.Errorf("Text = %q, want %q", r.Text, "one two")
		}
		if r.WordCount() != 2 {
			t.Errorf("WordCount() = %d, want 2", r.WordCount())
		}
	})
}

func TestBuildSegments(t *testing.T) {
	t.Run("sentence_boundary_from_text", func(t *testing.T) {
		words := []Word{
			{Word: "Cells", Start: 0.0, End: 0.4, Confidence: f64(0.9)},
			{Word: "divide", Start: 0.4, End: 0.8, Confidence: f64(0.7)},
			{Word: "Then", Start: 0.9, End: 1.1, Confidence: f64(0.5)},
			{Word: "grow", Start: 1.1, End: 1.5, Confidence: f64(0.5)},
		}
		segs := buildSegments(words, "Cells divide. Then grow!")
		if len(segs) != 2 {
			t.Fatalf("len(segs) = %d, want 2: %+v", len(segs), segs)
		}
		if segs[0].Text != "Cells divide." {
			t.Errorf("segs[0].Text = %q, want %q", segs[0].Text, "Cells divide.")
		}
		if segs[1].Text != "Then grow!" {
			t.Errorf("segs[1].Text = %q, want %q", segs[1].Text, "Then grow!")
		}
		if segs[0].Start != 0.0 || segs[0].End != 0.8 {
			t.Errorf("segs[0] bounds = [%v,%v], want [0,0.8]", segs[0].Start, segs[0].End)
		}
		if segs[0].Confidence == nil || math.Abs(*segs[0].Confidence-0.8) > 1e-9 {
			t.Errorf("segs[0].Confidence = %v, want 0.8", segs[0].Confidence)
		}
	})

	t.Run("long_pause_splits", func(t *testing.T) {
		words := []Word{
			{Word: "before", Start: 0, End: 0.5},
			{Word: "after", Start: 2.0, End: 2.5},
		}
		segs := buildSegments(words, "")
		if len(segs) != 2 {
			t.Fatalf("len(segs) = %d, want 2", len(segs))
		}
		if segs[1].Text != "after" {
			t.Errorf("segs[1].Text = %q, want after", segs[1].Text)
		}
		if segs[0].Confidence != nil {
			t.Errorf("segs[0].Confidence = %v, want nil", *segs[0].Confidence)
		}
	})

	t.Run("max_words_splits", func(t *testing.T) {
		words := make([]Word, 65)
		for i := range words {
			words[i] = Word{Word: "w", Start: float64(i) * 0.1, End: float64(i)*0.1 + 0.05}
		}
		segs := buildSegments(words, "")
		if len(segs) != 3 {
			t.Fatalf("len(segs) = %d, want 3", len(segs))
		}
		if n := len(strings.Fields(segs[0].Text)); n != segmentMaxWords {
			t.Errorf("first segment words = %d, want %d", n, segmentMaxWords)
		}
	})

	t.Run("repeated_words_map_in_order", func(t *testing.T) {
		words := []Word{
			{Word: "the", Start: 0, End: 0.1},
			{Word: "end.", Start: 0.1, End: 0.2},
			{Word: "the", Start: 0.3, End: 0.4},
			{Word: "end", Start: 0.4, End: 0.5},
		}
		segs := buildSegments(words, "The end. The end")
		if len(segs) != 2 || segs[1].Text != "The end" {
			t.Errorf("segs = %+v, want second segment %q", segs, "The end")
		}
	})

	t.Run("empty", func(t *testing.T) {
		if segs := buildSegments(nil, "x"); len(segs) != 0 {
			t.Errorf("len(segs) = %d, want 0", len(segs))
		}
	})
}
