package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fiverings/rings-server-go/internal/game/rules"
)

// JournalEntry records one notification published during event resolution.
// The ordered sequence of entries is the deterministic trace of a game: two
// runs with the same inputs and choices produce identical journals.
type JournalEntry struct {
	Seq       int
	Name      string
	EventID   string
	Timestamp time.Time
}

// Journal holds the ordered resolution trace for one game.
type Journal struct {
	GameID  string
	Entries []JournalEntry
	mu      sync.RWMutex
}

// NewJournal creates an empty journal.
func NewJournal(gameID string) *Journal {
	return &Journal{GameID: gameID}
}

// Append records one notification.
func (j *Journal) Append(name, eventID string, ts time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Entries = append(j.Entries, JournalEntry{
		Seq:       len(j.Entries),
		Name:      name,
		EventID:   eventID,
		Timestamp: ts,
	})
}

// Size returns the number of recorded entries.
func (j *Journal) Size() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.Entries)
}

// EntryAt returns the entry at the given index.
func (j *Journal) EntryAt(index int) (JournalEntry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if index < 0 || index >= len(j.Entries) {
		return JournalEntry{}, false
	}
	return j.Entries[index], true
}

// Names returns the notification names in recorded order.
func (j *Journal) Names() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	names := make([]string, len(j.Entries))
	for i, e := range j.Entries {
		names[i] = e.Name
	}
	return names
}

type journalMetadata struct {
	GameID     string
	Timestamp  time.Time
	Version    int
	EntryCount int
}

// SaveToFile saves the journal to a gzipped gob file in the given directory.
func (j *Journal) SaveToFile(directory string) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	filename := filepath.Join(directory, fmt.Sprintf("%s.journal", j.GameID))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := gob.NewEncoder(gzipWriter)
	metadata := journalMetadata{
		GameID:     j.GameID,
		Timestamp:  time.Now(),
		Version:    1,
		EntryCount: len(j.Entries),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i := range j.Entries {
		if err := encoder.Encode(&j.Entries[i]); err != nil {
			return fmt.Errorf("failed to encode entry %d: %w", i, err)
		}
	}
	return nil
}

// LoadJournalFromFile loads a journal from a gzipped gob file.
func LoadJournalFromFile(directory, gameID string) (*Journal, error) {
	filename := filepath.Join(directory, fmt.Sprintf("%s.journal", gameID))

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)
	var metadata journalMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported journal version: %d", metadata.Version)
	}

	journal := NewJournal(metadata.GameID)
	for i := 0; i < metadata.EntryCount; i++ {
		var entry JournalEntry
		if err := decoder.Decode(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode entry %d: %w", i, err)
		}
		journal.Entries = append(journal.Entries, entry)
	}
	return journal, nil
}

// JournalRecorder records resolution journals for hosted games.
type JournalRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	entries map[string]*Journal
	enabled map[string]bool
	saveDir string
}

// NewJournalRecorder creates a journal recorder saving to the given
// directory.
func NewJournalRecorder(logger *zap.Logger, saveDir string) *JournalRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalRecorder{
		logger:  logger,
		entries: make(map[string]*Journal),
		enabled: make(map[string]bool),
		saveDir: saveDir,
	}
}

// Attach starts recording a game by subscribing to its notification bus.
func (r *JournalRecorder) Attach(g *rules.Game) {
	r.mu.Lock()
	r.entries[g.ID] = NewJournal(g.ID)
	r.enabled[g.ID] = true
	r.mu.Unlock()

	gameID := g.ID
	g.Bus().Subscribe(func(n rules.Notification) {
		r.record(gameID, n)
	})

	r.logger.Debug("journal recording started", zap.String("game_id", gameID))
}

func (r *JournalRecorder) record(gameID string, n rules.Notification) {
	r.mu.RLock()
	enabled := r.enabled[gameID]
	journal := r.entries[gameID]
	r.mu.RUnlock()

	if !enabled || journal == nil {
		return
	}
	eventID := ""
	if n.Event != nil {
		eventID = n.Event.ID
	}
	journal.Append(n.Name, eventID, n.Timestamp)
}

// StopRecording stops recording for a game without discarding its journal.
func (r *JournalRecorder) StopRecording(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled[gameID] = false
}

// IsRecording reports whether recording is enabled for a game.
func (r *JournalRecorder) IsRecording(gameID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[gameID]
}

// Journal returns the journal for a game.
func (r *JournalRecorder) Journal(gameID string) (*Journal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	journal, ok := r.entries[gameID]
	return journal, ok
}

// SaveJournal saves a game's journal to disk and drops it from memory.
func (r *JournalRecorder) SaveJournal(gameID string) error {
	r.mu.Lock()
	journal, ok := r.entries[gameID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("no journal found for game %s", gameID)
	}
	delete(r.entries, gameID)
	delete(r.enabled, gameID)
	r.mu.Unlock()

	if err := journal.SaveToFile(r.saveDir); err != nil {
		return fmt.Errorf("failed to save journal: %w", err)
	}
	r.logger.Info("saved journal to disk",
		zap.String("game_id", gameID),
		zap.Int("entry_count", journal.Size()),
		zap.String("directory", r.saveDir),
	)
	return nil
}

// ClearJournal drops a game's journal without saving.
func (r *JournalRecorder) ClearJournal(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, gameID)
	delete(r.enabled, gameID)
}
