package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// fixQuestionPositions renumbers each video's questions to 1..N, keeping
// their current order. Gaps and duplicates come from hand edits.
func fixQuestionPositions(ctx context.Context, pool *pgxpool.Pool, dryRun bool) {
	const findBroken = `
		SELECT video_id, count(*), min(position), max(position), count(DISTINCT position)
		FROM quiz_questions
		GROUP BY video_id
		HAVING min(position) <> 1
		    OR max(position) <> count(*)
		    OR count(DISTINCT position) <> count(*)
		ORDER BY video_id
	`

	rows, err := pool.Query(ctx, findBroken)
	if err != nil {
		fmt.Printf("Error finding videos: %v\n", err)
		return
	}
	defer rows.Close()

	type broken struct {
		videoID             string
		n, lo, hi, distinct int
	}
	var videos []broken
	for rows.Next() {
		var b broken
		if err := rows.Scan(&b.videoID, &b.n, &b.lo, &b.hi, &b.distinct); err != nil {
			fmt.Printf("Error scanning row: %v\n", err)
			return
		}
		videos = append(videos, b)
	}
	rows.Close()

	fmt.Printf("Found %d videos with non-contiguous positions\n", len(videos))
	if len(videos) == 0 {
		return
	}

	if dryRun {
		fmt.Println("Dry run, no changes made. Run with 'fix-positions apply' to fix.")
		for i, b := range videos {
			if i >= 10 {
				fmt.Printf("  ... and %d more\n", len(videos)-10)
				break
			}
			fmt.Printf("  video=%s questions=%d positions=%d..%d distinct=%d\n", b.videoID, b.n, b.lo, b.hi, b.distinct)
		}
		return
	}

	const renumber = `
		UPDATE quiz_questions q
		SET position = r.rn
		FROM (
			SELECT id, row_number() OVER (ORDER BY position, id) AS rn
			FROM quiz_questions
			WHERE video_id = $1
		) r
		WHERE q.id = r.id
	`

	fixed := 0
	errors := 0
	for _, b := range videos {
		if _, err := pool.Exec(ctx, renumber, b.videoID); err != nil {
			fmt.Printf("  Error renumbering video=%s: %v\n", b.videoID, err)
			errors++
			continue
		}
		fixed++
	}
	fmt.Printf("Renumbered %d videos (%d errors)\n", fixed, errors)
}
