package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// stuckAfter is how long a transcript may sit in PENDING or PROCESSING. The
// queue is in-process, so rows older than this were orphaned by a restart.
const stuckAfter = time.Hour

func fixStuckTranscripts(ctx context.Context, pool *pgxpool.Pool, dryRun bool) {
	cutoff := time.Now().Add(-stuckAfter)

	rows, err := pool.Query(ctx, `
		SELECT video_id, status, updated_at
		FROM transcripts
		WHERE status IN ('PENDING', 'PROCESSING') AND updated_at < $1
		ORDER BY updated_at
	`, cutoff)
	if err != nil {
		fmt.Printf("Error finding transcripts: %v\n", err)
		return
	}
	defer rows.Close()

	type stuck struct {
		videoID string
		status  string
		updated time.Time
	}
	var found []stuck
	for rows.Next() {
		var s stuck
		if err := rows.Scan(&s.videoID, &s.status, &s.updated); err != nil {
			fmt.Printf("Error scanning row: %v\n", err)
			return
		}
		found = append(found, s)
	}
	rows.Close()

	fmt.Printf("Found %d transcripts stuck for more than %s\n", len(found), stuckAfter)
	if len(found) == 0 {
		return
	}

	if dryRun {
		fmt.Println("Dry run, no changes made. Run with 'fix-stuck apply' to mark them FAILED.")
		for i, s := range found {
			if i >= 10 {
				fmt.Printf("  ... and %d more\n", len(found)-10)
				break
			}
			fmt.Printf("  video=%s status=%s since=%s\n", s.videoID, s.status, s.updated.Format(time.RFC3339))
		}
		return
	}

	tag, err := pool.Exec(ctx, `
		UPDATE transcripts SET status = 'FAILED', updated_at = now()
		WHERE status IN ('PENDING', 'PROCESSING') AND updated_at < $1
	`, cutoff)
	if err != nil {
		fmt.Printf("Error updating transcripts: %v\n", err)
		return
	}
	fmt.Printf("Marked %d transcripts FAILED\n", tag.RowsAffected())
}
