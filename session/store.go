package session

import (
	"context"
	"fmt"
	"sync"

	"voicerelay/core"
)

// MaxHistoryTurns is the number of most recent turns kept per session.
const MaxHistoryTurns = 20

// Store owns per-session audio buffers and conversation history.
type Store interface {
	AppendAudioChunk(sessionID string, chunk []byte)
	DrainAudio(sessionID string) []byte
	History(sessionID string) []core.Turn
	AppendTurns(ctx context.Context, sessionID string, turns ...core.Turn) error
	Clear(ctx context.Context, sessionID string) error
	RemoveSession(sessionID string)
}

// HistoryPersister is the durable side-store for conversation history.
type HistoryPersister interface {
	// LoadAll returns every persisted history. Entries that cannot be decoded
	// are reported through skipped and left out of the result.
	LoadAll(ctx context.Context) (histories map[string][]core.Turn, skipped []string, err error)
	Save(ctx context.Context, sessionID string, turns []core.Turn) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore is the in-process Store. History mutations are written through
// to the persister before the call returns.
type MemoryStore struct {
	mu        sync.Mutex
	audio     map[string][][]byte
	histories map[string][]core.Turn
	persister HistoryPersister
	logger    *core.Logger
}

// NewMemoryStore creates a store. persister may be nil for a purely in-memory history.
func NewMemoryStore(persister HistoryPersister, logger *core.Logger) *MemoryStore {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &MemoryStore{
		audio:     make(map[string][][]byte),
		histories: make(map[string][]core.Turn),
		persister: persister,
		logger:    logger.With(map[string]any{"component": "session_store"}),
	}
}

// Load repopulates history from the persister. Corrupt entries are skipped
// with a warning; a persister that cannot be read at all leaves the store empty.
func (s *MemoryStore) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	histories, skipped, err := s.persister.LoadAll(ctx)
	for _, id := range skipped {
		s.logger.With(map[string]any{"session_id": id}).Warn("skipping unreadable persisted history")
	}
	if err != nil {
		s.logger.With(map[string]any{"error": err}).Warn("failed to load persisted history, starting empty")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, turns := range histories {
		s.histories[id] = truncate(turns)
	}
	s.logger.Infof("history loaded for %d sessions", len(histories))
	return nil
}

// AppendAudioChunk appends a copy of chunk to the session's pending audio.
func (s *MemoryStore) AppendAudioChunk(sessionID string, chunk []byte) {
	c := make([]byte, len(chunk))
	copy(c, chunk)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio[sessionID] = append(s.audio[sessionID], c)
}

// DrainAudio returns the concatenated pending audio and clears it. Nil when nothing is buffered.
func (s *MemoryStore) DrainAudio(sessionID string) []byte {
	s.mu.Lock()
	chunks := s.audio[sessionID]
	if _, ok := s.audio[sessionID]; ok {
		s.audio[sessionID] = nil
	}
	s.mu.Unlock()

	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	if size == 0 {
		return nil
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// ChunkCount reports the number of buffered chunks for a session.
func (s *MemoryStore) ChunkCount(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio[sessionID])
}

// History returns a copy of the last MaxHistoryTurns turns.
func (s *MemoryStore) History(sessionID string) []core.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[sessionID]
	if !ok {
		s.histories[sessionID] = []core.Turn{}
		return []core.Turn{}
	}
	out := make([]core.Turn, len(h))
	copy(out, h)
	return out
}

// AppendTurns appends turns in order, truncates and persists in one mutation.
// The in-memory history keeps the mutation even when persisting fails.
func (s *MemoryStore) AppendTurns(ctx context.Context, sessionID string, turns ...core.Turn) error {
	s.mu.Lock()
	h := append(s.histories[sessionID], turns...)
	h = truncate(h)
	s.histories[sessionID] = h
	snapshot := make([]core.Turn, len(h))
	copy(snapshot, h)
	s.mu.Unlock()

	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, sessionID, snapshot); err != nil {
		return fmt.Errorf("session: persist history for %s: %w", sessionID, err)
	}
	return nil
}

// Clear removes a session's history and persists the removal.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.histories, sessionID)
	s.mu.Unlock()

	if s.persister == nil {
		return nil
	}
	if err := s.persister.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("session: delete history for %s: %w", sessionID, err)
	}
	return nil
}

// RemoveSession drops the audio buffer only; history survives reconnects.
func (s *MemoryStore) RemoveSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.audio, sessionID)
}

// truncate keeps the most recent MaxHistoryTurns entries.
func truncate(turns []core.Turn) []core.Turn {
	if len(turns) <= MaxHistoryTurns {
		return turns
	}
	out := make([]core.Turn, MaxHistoryTurns)
	copy(out, turns[len(turns)-MaxHistoryTurns:])
	return out
}
