package transcribe

import (
	"strings"
)

const (
	segmentMaxPause = 1.0 // seconds of silence that always starts a new segment
	segmentMaxWords = 30
)

// Result is the canonical transcript produced from any provider response.
type Result struct {
	Text       string    `json:"text"`
	Language   string    `json:"language"`
	Confidence float64   `json:"confidence"` // 0..1, 0 when unknown
	Duration   float64   `json:"duration,omitempty"`
	Segments   []Segment `json:"segments"`
}

// Segment is a time-bounded span of transcript text.
type Segment struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// WordCount returns the number of whitespace-separated words in the text.
func (r *Result) WordCount() int {
	return len(strings.Fields(r.Text))
}

// Normalize converts a provider response into a Result. Vendor segments win
// over word-level data; without either the transcript has no segments.
// defaultLanguage fills in when the provider does not report one.
func Normalize(resp *Response, defaultLanguage string) Result {
	if resp == nil {
		return Result{Segments: []Segment{}}
	}

	text := strings.TrimSpace(resp.Text)

	var segments []Segment
	switch {
	case len(resp.Segments) > 0:
		segments = cleanSegments(resp.Segments)
	case len(resp.Words) > 0:
		segments = buildSegments(resp.Words, text)
	default:
		segments = []Segment{}
	}

	if text == "" && len(segments) > 0 {
		parts := make([]string, len(segments))
		for i, s := range segments {
			parts[i] = s.Text
		}
		text = strings.Join(parts, " ")
	}

	lang := resp.Language
	if lang == "" {
		lang = defaultLanguage
	}

	return Result{
		Text:       text,
		Language:   lang,
		Confidence: overallConfidence(resp, segments),
		Duration:   resp.Duration,
		Segments:   segments,
	}
}

// cleanSegments trims segment text and drops empty segments.
func cleanSegments(in []Segment) []Segment {
	out := make([]Segment, 0, len(in))
	for _, s := range in {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.Confidence != nil {
			c := clamp01(*s.Confidence)
			s.Confidence = &c
		}
		out = append(out, s)
	}
	return out
}

// overallConfidence prefers the provider's own score, then the mean of word
// confidences, then the mean of segment confidences.
func overallConfidence(resp *Response, segments []Segment) float64 {
	if resp.Confidence != nil {
		return clamp01(*resp.Confidence)
	}
	if c := meanConfidence(resp.Words); c != nil {
		return *c
	}
	var sum float64
	var n int
	for _, s := range segments {
		if s.Confidence != nil {
			sum += *s.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return clamp01(sum / float64(n))
}

// mapWordPositions maps each word token to its byte offset in fullText using
// sequential case-insensitive forward scanning. Each word is matched only once,
// advancing past previous matches to handle repeated words correctly.
// Returns nil when lowercasing changes the byte length of fullText, since
// offsets would then not line up.
func mapWordPositions(words []Word, fullText string) []int {
	lower := strings.ToLower(fullText)
	if len(lower) != len(fullText) {
		return nil
	}
	positions := make([]int, len(words))
	searchFrom := 0

	for i, w := range words {
		wLower := strings.ToLower(strings.TrimSpace(w.Word))
		idx := -1
		if wLower != "" {
			idx = strings.Index(lower[searchFrom:], wLower)
		}
		if idx >= 0 {
			positions[i] = searchFrom + idx
			searchFrom = searchFrom + idx + len(wLower)
		} else {
			// Word not found, use current search position as best guess
			positions[i] = searchFrom
		}
	}
	return positions
}

// buildSegments groups consecutive words into segments, breaking at sentence
// ends, long pauses, or segmentMaxWords. When fullText is provided, segment
// text is sliced from it to preserve punctuation. Falls back to joining word
// tokens when fullText is empty.
func buildSegments(words []Word, fullText string) []Segment {
	if len(words) == 0 {
		return []Segment{}
	}

	var positions []int
	if fullText != "" {
		positions = mapWordPositions(words, fullText)
	}

	type group struct {
		start    float64
		end      float64
		firstIdx int
		lastIdx  int
	}

	var groups []group
	g := group{start: words[0].Start, end: words[0].End}

	for i := 1; i < len(words); i++ {
		if breakBefore(words, positions, fullText, i, i-g.firstIdx) {
			groups = append(groups, g)
			g = group{start: words[i].Start, end: words[i].End, firstIdx: i, lastIdx: i}
			continue
		}
		g.end = words[i].End
		g.lastIdx = i
	}
	groups = append(groups, g)

	segments := make([]Segment, 0, len(groups))
	for i, grp := range groups {
		var text string
		if positions != nil {
			textStart := positions[grp.firstIdx]
			textEnd := len(fullText)
			if i+1 < len(groups) {
				textEnd = positions[groups[i+1].firstIdx]
			}
			text = strings.TrimSpace(fullText[textStart:textEnd])
		} else {
			text = joinWords(words[grp.firstIdx : grp.lastIdx+1])
		}
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start:      grp.start,
			End:        grp.end,
			Text:       text,
			Confidence: meanConfidence(words[grp.firstIdx : grp.lastIdx+1]),
		})
	}
	return segments
}

// breakBefore reports whether word i starts a new segment. groupLen is the
// number of words already in the current segment.
func breakBefore(words []Word, positions []int, fullText string, i, groupLen int) bool {
	if groupLen >= segmentMaxWords {
		return true
	}
	if words[i].Start-words[i-1].End > segmentMaxPause {
		return true
	}
	prev := words[i-1].Word
	if positions != nil {
		// Text between the previous word and this one carries punctuation the
		// tokens may lack.
		prev = fullText[positions[i-1]:positions[i]]
	}
	return endsSentence(strings.TrimSpace(prev))
}

func endsSentence(s string) bool {
	s = strings.TrimRight(s, `"')]`)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "?") ||
		strings.HasSuffix(s, "!") || strings.HasSuffix(s, "…")
}

func joinWords(words []Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w.Word); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func meanConfidence(words []Word) *float64 {
	var sum float64
	var n int
	for _, w := range words {
		if w.Confidence != nil {
			sum += *w.Confidence
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := clamp01(sum / float64(n))
	return &m
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
