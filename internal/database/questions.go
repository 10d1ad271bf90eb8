package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// QuestionRow is one stored quiz question.
type QuestionRow struct {
	VideoID       string   `json:"video_id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
	Points        int      `json:"points"`
	Position      int      `json:"position"`
	Source        string   `json:"source"` // "transcript" or "topic"
}

// lockVideoSQL serializes question replacement per video until the
// transaction ends. Without it two overlapping replacements both delete the
// same old rows and both inserts commit.
const lockVideoSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

// ReplaceQuestions deletes every question for the video and inserts rows in
// one transaction, assigning positions 1..N in slice order. Concurrent
// replacements for the same video run one after the other.
func (db *DB) ReplaceQuestions(ctx context.Context, videoID string, rows []QuestionRow) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := replaceQuestions(ctx, tx, videoID, rows); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListQuestions returns a video's questions ordered by position.
func (db *DB) ListQuestions(ctx context.Context, videoID string) ([]QuestionRow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT video_id, question, options, correct_answer, explanation,
			difficulty, points, position, source
		FROM quiz_questions WHERE video_id = $1
		ORDER BY position
	`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []QuestionRow
	for rows.Next() {
		var q QuestionRow
		if err := rows.Scan(&q.VideoID, &q.Question, &q.Options, &q.CorrectAnswer, &q.Explanation,
			&q.Difficulty, &q.Points, &q.Position, &q.Source); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// batchExecer is the part of pgx.Tx that question replacement uses.
type batchExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func replaceQuestions(ctx context.Context, tx batchExecer, videoID string, rows []QuestionRow) error {
	if _, err := tx.Exec(ctx, lockVideoSQL, videoID); err != nil {
		return fmt.Errorf("lock video questions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM quiz_questions WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	return insertQuestions(ctx, tx, videoID, rows)
}

func insertQuestions(ctx context.Context, tx batchExecer, videoID string, rows []QuestionRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, q := range rows {
		batch.Queue(`
			INSERT INTO quiz_questions (
				video_id, question, options, correct_answer, explanation,
				difficulty, points, position, source
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, videoID, q.Question, q.Options, q.CorrectAnswer, q.Explanation,
			q.Difficulty, q.Points, i+1, q.Source)
	}
	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return br.Close()
}
