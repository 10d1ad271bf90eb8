package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/snarg/lecture-pipeline/internal/database"
	"github.com/snarg/lecture-pipeline/internal/llm"
	"github.com/snarg/lecture-pipeline/internal/metrics"
)

// Tier identifies which strategy produced a quiz.
type Tier string

const (
	TierTranscript Tier = "transcript"
	TierTopic      Tier = "topic"
)

// Minimum valid questions for each tier to be accepted.
const (
	transcriptMinValid = 5
	topicMinValid      = 1
)

// VideoReader loads a video with its course metadata and transcript.
type VideoReader interface {
	GetVideoContext(ctx context.Context, videoID string) (*database.VideoContext, error)
}

// QuestionStore replaces a video's stored question set.
type QuestionStore interface {
	ReplaceQuestions(ctx context.Context, videoID string, rows []database.QuestionRow) error
}

// GenerationError means neither tier produced an acceptable quiz.
type GenerationError struct {
	VideoID       string
	TranscriptErr error // nil if the transcript tier was not attempted
	TopicErr      error
}

func (e *GenerationError) Error() string {
	if e.TranscriptErr != nil {
		return fmt.Sprintf("quiz generation failed for video %s: transcript tier: %v; topic tier: %v", e.VideoID, e.TranscriptErr, e.TopicErr)
	}
	return fmt.Sprintf("quiz generation failed for video %s: %v", e.VideoID, e.TopicErr)
}

func (e *GenerationError) Unwrap() []error {
	var errs []error
	if e.TranscriptErr != nil {
		errs = append(errs, e.TranscriptErr)
	}
	if e.TopicErr != nil {
		errs = append(errs, e.TopicErr)
	}
	return errs
}

// Outcome reports the accepted tier and the stored questions.
type Outcome struct {
	Tier      Tier       `json:"tier"`
	Questions []Question `json:"questions"`
	Dropped   int        `json:"dropped"`
}

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	LLM    llm.Client
	Videos VideoReader
	Store  QuestionStore
	Log    zerolog.Logger
}

// Generator synthesizes and stores quizzes, preferring the transcript.
type Generator struct {
	llm    llm.Client
	videos VideoReader
	store  QuestionStore
	log    zerolog.Logger
}

// NewGenerator creates a quiz generator.
func NewGenerator(opts GeneratorOptions) *Generator {
	return &Generator{
		llm:    opts.LLM,
		videos: opts.Videos,
		store:  opts.Store,
		log:    opts.Log.With().Str("component", "quiz").Logger(),
	}
}

// Generate builds and stores the quiz for videoID and returns the questions.
func (g *Generator) Generate(ctx context.Context, videoID string) ([]Question, error) {
	out, err := g.GenerateWithOutcome(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// GenerateWithOutcome tries the transcript tier when a completed transcript
// exists, then the topic tier. The first accepted set replaces the video's
// stored questions.
func (g *Generator) GenerateWithOutcome(ctx context.Context, videoID string) (*Outcome, error) {
	v, err := g.videos.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", videoID, err)
	}
	log := g.log.With().Str("video_id", videoID).Logger()

	var transcriptErr error
	if t := v.Transcript; t != nil && t.Status == database.TranscriptCompleted && strings.TrimSpace(t.Content) != "" {
		out, err := g.attempt(ctx, TierTranscript, BuildTranscriptPrompt(v, t.Content), transcriptMinValid)
		if err == nil {
			return g.persist(ctx, log, videoID, out)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		transcriptErr = err
		log.Warn().Err(err).Msg("transcript-grounded quiz rejected, falling back to topic")
	}

	out, err := g.attempt(ctx, TierTopic, BuildTopicPrompt(v), topicMinValid)
	if err != nil {
		return nil, &GenerationError{VideoID: videoID, TranscriptErr: transcriptErr, TopicErr: err}
	}
	return g.persist(ctx, log, videoID, out)
}

// attempt runs one tier and applies its acceptance threshold.
func (g *Generator) attempt(ctx context.Context, tier Tier, prompt string, minValid int) (*Outcome, error) {
	raw, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		metrics.QuizGenerationsTotal.WithLabelValues(string(tier), "error").Inc()
		return nil, err
	}

	res, err := ParseQuestions(raw)
	if res != nil {
		metrics.QuizQuestionsDroppedTotal.Add(float64(res.Dropped))
	}
	if err != nil {
		metrics.QuizGenerationsTotal.WithLabelValues(string(tier), "rejected").Inc()
		return nil, err
	}
	if len(res.Questions) < minValid {
		metrics.QuizGenerationsTotal.WithLabelValues(string(tier), "rejected").Inc()
		return nil, &ParseError{
			Reason: fmt.Sprintf("%d valid questions, need at least %d", len(res.Questions), minValid),
			Raw:    excerpt(raw),
		}
	}

	questions := res.Questions
	if len(questions) > QuestionCount {
		questions = questions[:QuestionCount]
	}
	metrics.QuizGenerationsTotal.WithLabelValues(string(tier), "accepted").Inc()
	return &Outcome{Tier: tier, Questions: questions, Dropped: res.Dropped}, nil
}

func (g *Generator) persist(ctx context.Context, log zerolog.Logger, videoID string, out *Outcome) (*Outcome, error) {
	rows := make([]database.QuestionRow, len(out.Questions))
	for i := range out.Questions {
		q := &out.Questions[i]
		q.Position = i + 1
		rows[i] = database.QuestionRow{
			VideoID:       videoID,
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: q.Correct,
			Explanation:   q.Explanation,
			Difficulty:    q.Difficulty,
			Points:        q.Points,
			Position:      q.Position,
			Source:        string(out.Tier),
		}
	}
	if err := g.store.ReplaceQuestions(ctx, videoID, rows); err != nil {
		return nil, fmt.Errorf("store questions: %w", err)
	}

	log.Info().
		Str("tier", string(out.Tier)).
		Int("questions", len(out.Questions)).
		Int("dropped", out.Dropped).
		Str("model", g.llm.Model()).
		Msg("quiz generated")
	return out, nil
}

// IsGenerationError reports whether err means both tiers failed.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
