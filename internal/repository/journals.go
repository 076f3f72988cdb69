package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fiverings/rings-server-go/internal/game"
)

// JournalRepository persists per-game resolution journals.
type JournalRepository struct {
	db *DB
}

// NewJournalRepository creates a journal repository.
func NewJournalRepository(db *DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// EnsureSchema creates the journal table when missing.
func (r *JournalRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Pool().Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_journals (
			game_id     TEXT        NOT NULL,
			seq         INTEGER     NOT NULL,
			name        TEXT        NOT NULL,
			event_id    TEXT        NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (game_id, seq)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create game_journals table: %w", err)
	}
	return nil
}

// SaveJournal stores all entries of a journal, replacing any previous rows
// for the same game.
func (r *JournalRepository) SaveJournal(ctx context.Context, journal *game.Journal) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM game_journals WHERE game_id = $1`, journal.GameID); err != nil {
		return fmt.Errorf("failed to clear previous journal: %w", err)
	}

	batch := &pgx.Batch{}
	for _, entry := range journal.Entries {
		batch.Queue(
			`INSERT INTO game_journals (game_id, seq, name, event_id, recorded_at) VALUES ($1, $2, $3, $4, $5)`,
			journal.GameID, entry.Seq, entry.Name, entry.EventID, entry.Timestamp,
		)
	}
	results := tx.SendBatch(ctx, batch)
	for range journal.Entries {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert journal entry: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// LoadJournal reads a game's journal back in recorded order.
func (r *JournalRepository) LoadJournal(ctx context.Context, gameID string) (*game.Journal, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT seq, name, event_id, recorded_at FROM game_journals WHERE game_id = $1 ORDER BY seq`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	journal := game.NewJournal(gameID)
	for rows.Next() {
		var entry game.JournalEntry
		if err := rows.Scan(&entry.Seq, &entry.Name, &entry.EventID, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		journal.Entries = append(journal.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal rows: %w", err)
	}
	return journal, nil
}
