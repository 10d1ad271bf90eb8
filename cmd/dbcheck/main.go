package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	pool, err := pgxpool.New(context.Background(), os.Getenv("DATABASE_URL"))
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	ctx := context.Background()

	if len(os.Args) > 1 && os.Args[1] == "quiz" {
		investigateQuizzes(ctx, pool)
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "fix-positions" {
		dryRun := !(len(os.Args) > 2 && os.Args[2] == "apply")
		fixQuestionPositions(ctx, pool, dryRun)
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "fix-stuck" {
		dryRun := !(len(os.Args) > 2 && os.Args[2] == "apply")
		fixStuckTranscripts(ctx, pool, dryRun)
		return
	}

	// Default: table counts
	tables := []string{"courses", "videos", "transcripts", "quiz_questions"}
	fmt.Println("Table                    Count")
	fmt.Println("─────────────────────────────────")
	for _, t := range tables {
		var count int64
		pool.QueryRow(ctx, "SELECT count(*) FROM "+t).Scan(&count)
		fmt.Printf("%-25s %d\n", t, count)
	}

	fmt.Println("\n── Transcripts By Status ──")
	rows, _ := pool.Query(ctx, `SELECT status, count(*) FROM transcripts GROUP BY status ORDER BY status`)
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		rows.Scan(&status, &count)
		fmt.Printf("  %-12s %d\n", status, count)
	}
}

func investigateQuizzes(ctx context.Context, pool *pgxpool.Pool) {
	// 1. Quiz size distribution
	fmt.Println("── Questions Per Video ──")
	rows, _ := pool.Query(ctx, `
		SELECT n, count(*) AS videos
		FROM (SELECT video_id, count(*) AS n FROM quiz_questions GROUP BY video_id) sub
		GROUP BY n
		ORDER BY n
	`)
	defer rows.Close()
	for rows.Next() {
		var n, count int
		rows.Scan(&n, &count)
		fmt.Printf("  %d question(s): %d videos\n", n, count)
	}

	// 2. Which tier produced the stored quizzes
	fmt.Println("\n── Quizzes By Source ──")
	rows2, _ := pool.Query(ctx, `
		SELECT source, count(DISTINCT video_id) FROM quiz_questions GROUP BY source ORDER BY source
	`)
	defer rows2.Close()
	for rows2.Next() {
		var source string
		var count int
		rows2.Scan(&source, &count)
		fmt.Printf("  %-12s %d videos\n", source, count)
	}

	// 3. Videos with a transcript but no quiz
	var missing int64
	pool.QueryRow(ctx, `
		SELECT count(*) FROM transcripts t
		WHERE t.status = 'COMPLETED'
		  AND NOT EXISTS (SELECT 1 FROM quiz_questions q WHERE q.video_id = t.video_id)
	`).Scan(&missing)
	fmt.Printf("\n  Completed transcripts without a quiz: %d\n", missing)

	// 4. Topic quizzes that could now be grounded in a transcript
	fmt.Println("\n── Topic Quizzes With A Completed Transcript (first 20) ──")
	rows3, _ := pool.Query(ctx, `
		SELECT DISTINCT q.video_id, t.word_count
		FROM quiz_questions q
		JOIN transcripts t ON t.video_id = q.video_id AND t.status = 'COMPLETED'
		WHERE q.source = 'topic'
		ORDER BY q.video_id
		LIMIT 20
	`)
	defer rows3.Close()
	found := false
	for rows3.Next() {
		found = true
		var videoID string
		var words int
		rows3.Scan(&videoID, &words)
		fmt.Printf("  video=%s transcript_words=%d\n", videoID, words)
	}
	if !found {
		fmt.Println("  (none found)")
	}
}
