package quiz

import (
	"fmt"
	"strings"

	"github.com/snarg/lecture-pipeline/internal/database"
)

// Transcript sampling limits, in characters.
const (
	sampleThreshold = 8000
	sampleHead      = 2000
	sampleMiddle    = 4000
	sampleTail      = 2000
)

// Section markers joining the sampled parts of a long transcript.
const (
	markerBeginning = "[BEGINNING OF LECTURE]"
	markerMiddle    = "[... MIDDLE OF LECTURE ...]"
	markerEnd       = "[... END OF LECTURE ...]"
)

// SampleTranscript returns text unchanged when it is at most 8000 characters.
// Longer transcripts are cut to the first 2000, a 4000-character slice
// centered on the midpoint, and the last 2000, joined with section markers.
func SampleTranscript(text string) string {
	r := []rune(text)
	if len(r) <= sampleThreshold {
		return text
	}

	mid := len(r) / 2
	midStart := mid - sampleMiddle/2
	midEnd := midStart + sampleMiddle

	var b strings.Builder
	b.WriteString(markerBeginning)
	b.WriteString("\n")
	b.WriteString(string(r[:sampleHead]))
	b.WriteString("\n\n")
	b.WriteString(markerMiddle)
	b.WriteString("\n")
	b.WriteString(string(r[midStart:midEnd]))
	b.WriteString("\n\n")
	b.WriteString(markerEnd)
	b.WriteString("\n")
	b.WriteString(string(r[len(r)-sampleTail:]))
	return b.String()
}

// BuildTranscriptPrompt asks for questions grounded in the lecture transcript.
func BuildTranscriptPrompt(v *database.VideoContext, transcript string) string {
	var b strings.Builder
	b.WriteString("You are an expert educator writing an assessment for a recorded lecture.\n\n")
	writeVideoContext(&b, v, false)
	b.WriteString("\nLECTURE TRANSCRIPT:\n\"\"\"\n")
	b.WriteString(SampleTranscript(transcript))
	b.WriteString("\n\"\"\"\n\n")
	fmt.Fprintf(&b, "Write exactly %d multiple-choice questions that test understanding of what is actually said in the transcript above.\n", QuestionCount)
	writeRequirements(&b, "Each explanation must reference what the lecturer said in the transcript.")
	return b.String()
}

// BuildTopicPrompt asks for questions from the video metadata alone.
func BuildTopicPrompt(v *database.VideoContext) string {
	var b strings.Builder
	b.WriteString("You are an expert educator writing an assessment for a lecture video.\n")
	b.WriteString("No transcript is available; base the questions on the topic described below.\n\n")
	writeVideoContext(&b, v, true)
	fmt.Fprintf(&b, "\nWrite exactly %d multiple-choice questions covering the core concepts of this topic at the stated level.\n", QuestionCount)
	writeRequirements(&b, "Each explanation must say why the correct option is right.")
	return b.String()
}

func writeVideoContext(b *strings.Builder, v *database.VideoContext, withAuthorContext bool) {
	fmt.Fprintf(b, "VIDEO TITLE: %s\n", v.Title)
	if v.Description != "" {
		fmt.Fprintf(b, "VIDEO DESCRIPTION: %s\n", v.Description)
	}
	if v.CourseTitle != "" {
		fmt.Fprintf(b, "COURSE: %s\n", v.CourseTitle)
	}
	if v.Category != "" {
		fmt.Fprintf(b, "CATEGORY: %s\n", v.Category)
	}
	if v.Level != "" {
		fmt.Fprintf(b, "LEVEL: %s\n", v.Level)
	}
	if withAuthorContext && v.AIPrompt != "" {
		fmt.Fprintf(b, "ADDITIONAL CONTEXT FROM THE INSTRUCTOR: %s\n", v.AIPrompt)
	}
}

func writeRequirements(b *strings.Builder, explanationRule string) {
	b.WriteString("\nREQUIREMENTS:\n")
	fmt.Fprintf(b, "- Difficulty distribution: 2 %s, 4 %s, 2 %s.\n", DifficultyEasy, DifficultyMedium, DifficultyHard)
	fmt.Fprintf(b, "- Every question has exactly %d answer options and exactly one correct option.\n", OptionCount)
	b.WriteString("- \"correct\" is the zero-based index of the correct option.\n")
	b.WriteString("- " + explanationRule + "\n")
	fmt.Fprintf(b, "- Points: %d per question unless a harder question deserves more.\n", DefaultPoints)
	b.WriteString("\nRespond with ONLY a JSON array in this format:\n")
	b.WriteString(`[
  {
    "question": "Question text?",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correct": 0,
    "explanation": "Why option A is correct.",
    "difficulty": "easy",
    "points": 10
  }
]`)
	b.WriteString("\n")
}
