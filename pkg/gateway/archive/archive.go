// Package archive persists transcript lines to Postgres so finished calls
// can be reviewed for compliance. The store is optional; without a database
// URL the gateway runs with archival disabled.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store writes transcript lines to the meeting_transcripts table.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres, applies pending migrations, and returns a
// ready store.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := migrate(databaseURL); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("archive: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func migrate(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("archive: open for migration: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("archive: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// SaveTranscript appends one transcript line. The role distinguishes spoken
// customer audio from assistant output.
func (s *Store) SaveTranscript(ctx context.Context, meetingID, speaker, role, text string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO meeting_transcripts (meeting_id, speaker, role, text, spoken_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		meetingID, speaker, role, text, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("archive: save transcript: %w", err)
	}
	return nil
}

// TranscriptLine is one archived utterance.
type TranscriptLine struct {
	Speaker  string    `json:"speaker"`
	Role     string    `json:"role"`
	Text     string    `json:"text"`
	SpokenAt time.Time `json:"spokenAt"`
}

// Transcript returns the archived lines for a meeting in spoken order.
func (s *Store) Transcript(ctx context.Context, meetingID string) ([]TranscriptLine, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT speaker, role, text, spoken_at
		 FROM meeting_transcripts
		 WHERE meeting_id = $1
		 ORDER BY spoken_at, id`,
		meetingID,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: load transcript: %w", err)
	}
	defer rows.Close()

	var lines []TranscriptLine
	for rows.Next() {
		var l TranscriptLine
		if err := rows.Scan(&l.Speaker, &l.Role, &l.Text, &l.SpokenAt); err != nil {
			return nil, fmt.Errorf("archive: scan transcript: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: read transcript: %w", err)
	}
	return lines, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
