package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"voicerelay/core"

	"github.com/bytedance/sonic"
)

// DefaultHistoryFile is where the file persister keeps history unless configured otherwise.
const DefaultHistoryFile = "data/mistral_history.json"

// FilePersister keeps every session's history in one JSON object keyed by
// session id. The whole file is rewritten via temp file + rename on each save.
type FilePersister struct {
	path string

	mu      sync.Mutex
	loaded  bool
	entries map[string][]core.Turn
}

func NewFilePersister(path string) *FilePersister {
	if path == "" {
		path = DefaultHistoryFile
	}
	return &FilePersister{
		path:    path,
		entries: make(map[string][]core.Turn),
	}
}

// LoadAll reads the file. A missing file is an empty history; a file that is
// not a JSON object is an error; a session entry that does not decode is skipped.
func (p *FilePersister) LoadAll(ctx context.Context) (map[string][]core.Turn, []string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	skipped, err := p.loadLocked()
	if err != nil {
		return nil, skipped, err
	}

	out := make(map[string][]core.Turn, len(p.entries))
	for id, turns := range p.entries {
		out[id] = append([]core.Turn(nil), turns...)
	}
	return out, skipped, nil
}

func (p *FilePersister) Save(ctx context.Context, sessionID string, turns []core.Turn) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureLoadedLocked(); err != nil {
		return err
	}
	p.entries[sessionID] = append([]core.Turn(nil), turns...)
	return p.writeLocked()
}

func (p *FilePersister) Delete(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureLoadedLocked(); err != nil {
		return err
	}
	delete(p.entries, sessionID)
	return p.writeLocked()
}

// ensureLoadedLocked reads the file once so a first Save does not drop other sessions.
// While the existing file can neither be read nor moved aside, writes are refused.
func (p *FilePersister) ensureLoadedLocked() error {
	if p.loaded {
		return nil
	}
	if _, err := p.loadLocked(); err != nil && !p.loaded {
		return fmt.Errorf("storage: existing history unreadable, not overwriting: %w", err)
	}
	return nil
}

// loadLocked sets p.loaded once the file's contents are in memory or the
// unparsable file has been moved out of the way.
func (p *FilePersister) loadLocked() ([]string, error) {
	p.loaded = false
	p.entries = make(map[string][]core.Turn)

	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		p.loaded = true
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %q: %w", p.path, err)
	}
	if len(data) == 0 {
		p.loaded = true
		return nil, nil
	}

	var raw map[string]json.RawMessage
	if err := sonic.Unmarshal(data, &raw); err != nil {
		parseErr := fmt.Errorf("storage: parse %q: %w", p.path, err)
		if renameErr := os.Rename(p.path, p.path+".corrupt"); renameErr != nil {
			return nil, errors.Join(parseErr, fmt.Errorf("storage: move aside: %w", renameErr))
		}
		p.loaded = true
		return nil, parseErr
	}

	var skipped []string
	for id, entry := range raw {
		turns, err := decodeTurns(entry)
		if err != nil {
			skipped = append(skipped, id)
			continue
		}
		p.entries[id] = turns
	}
	p.loaded = true
	return skipped, nil
}

func (p *FilePersister) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("storage: create history directory: %w", err)
	}

	data, err := sonic.MarshalIndent(p.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode history file: %w", err)
	}

	tempPath := p.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("storage: write %q: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, p.path); err != nil {
		return fmt.Errorf("storage: replace %q: %w", p.path, err)
	}
	return nil
}
