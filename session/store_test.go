package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"voicerelay/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type recordingPersister struct {
	saved   map[string][]core.Turn
	deleted []string
	loadErr error
	saveErr error
	skipped []string
}

func newRecordingPersister() *recordingPersister {
	return &recordingPersister{saved: make(map[string][]core.Turn)}
}

func (p *recordingPersister) LoadAll(context.Context) (map[string][]core.Turn, []string, error) {
	if p.loadErr != nil {
		return nil, p.skipped, p.loadErr
	}
	out := make(map[string][]core.Turn, len(p.saved))
	for k, v := range p.saved {
		out[k] = append([]core.Turn(nil), v...)
	}
	return out, p.skipped, nil
}

func (p *recordingPersister) Save(_ context.Context, id string, turns []core.Turn) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saved[id] = append([]core.Turn(nil), turns...)
	return nil
}

func (p *recordingPersister) Delete(_ context.Context, id string) error {
	delete(p.saved, id)
	p.deleted = append(p.deleted, id)
	return nil
}

func TestDrainAudioConcatenatesAndClears(t *testing.T) {
	s := NewMemoryStore(nil, nil)
	s.AppendAudioChunk("s1", []byte("b1"))
	s.AppendAudioChunk("s1", []byte("b2"))
	assert.Equal(t, 2, s.ChunkCount("s1"))

	assert.Equal(t, []byte("b1b2"), s.DrainAudio("s1"))
	assert.Empty(t, s.DrainAudio("s1"))
}

func TestDrainAudioOnUnknownSessionIsEmpty(t *testing.T) {
	s := NewMemoryStore(nil, nil)
	assert.Empty(t, s.DrainAudio("never-seen"))
}

func TestAppendAudioChunkCopiesInput(t *testing.T) {
	s := NewMemoryStore(nil, nil)
	buf := []byte("abc")
	s.AppendAudioChunk("s1", buf)
	buf[0] = 'z'
	assert.Equal(t, []byte("abc"), s.DrainAudio("s1"))
}

func TestRemoveSessionKeepsHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil, nil)
	s.AppendAudioChunk("s1", []byte("x"))
	require.NoError(t, s.AppendTurns(ctx, "s1", core.UserTurn("hello")))

	s.RemoveSession("s1")

	assert.Empty(t, s.DrainAudio("s1"))
	assert.Equal(t, []core.Turn{core.UserTurn("hello")}, s.History("s1"))
}

func TestHistoryCreatesEmpty(t *testing.T) {
	s := NewMemoryStore(nil, nil)
	h := s.History("fresh")
	assert.NotNil(t, h)
	assert.Empty(t, h)
}

func TestAppendTurnsPersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	p := newRecordingPersister()
	s := NewMemoryStore(p, nil)

	require.NoError(t, s.AppendTurns(ctx, "s1", core.UserTurn("hi"), core.AssistantTurn("hello")))
	assert.Equal(t, []core.Turn{core.UserTurn("hi"), core.AssistantTurn("hello")}, p.saved["s1"])
}

func TestAppendTurnsPersistErrorKeepsMemory(t *testing.T) {
	ctx := context.Background()
	p := newRecordingPersister()
	p.saveErr = errors.New("disk full")
	s := NewMemoryStore(p, nil)

	err := s.AppendTurns(ctx, "s1", core.UserTurn("hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, p.saveErr)
	assert.Len(t, s.History("s1"), 1)
}

func TestClearPersistsRemoval(t *testing.T) {
	ctx := context.Background()
	p := newRecordingPersister()
	s := NewMemoryStore(p, nil)
	require.NoError(t, s.AppendTurns(ctx, "s1", core.UserTurn("hi")))

	require.NoError(t, s.Clear(ctx, "s1"))
	assert.Empty(t, s.History("s1"))
	assert.Equal(t, []string{"s1"}, p.deleted)

	reloaded := NewMemoryStore(p, nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Empty(t, reloaded.History("s1"))
}

func TestLoadRepopulatesAndTruncates(t *testing.T) {
	ctx := context.Background()
	p := newRecordingPersister()
	var long []core.Turn
	for i := 0; i < 30; i++ {
		long = append(long, core.UserTurn(fmt.Sprintf("m%d", i)))
	}
	p.saved["s1"] = long
	p.skipped = []string{"broken"}

	s := NewMemoryStore(p, nil)
	require.NoError(t, s.Load(ctx))

	h := s.History("s1")
	require.Len(t, h, MaxHistoryTurns)
	assert.Equal(t, "m10", h[0].Content)
	assert.Equal(t, "m29", h[len(h)-1].Content)
}

func TestLoadFailureStartsEmpty(t *testing.T) {
	p := newRecordingPersister()
	p.loadErr = errors.New("unreadable")
	s := NewMemoryStore(p, nil)
	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.History("s1"))
}

func TestHistoryCapProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		s := NewMemoryStore(nil, nil)
		batches := rapid.SliceOfN(rapid.IntRange(1, 3), 0, 40).Draw(t, "batches")

		var all []core.Turn
		n := 0
		for _, size := range batches {
			turns := make([]core.Turn, size)
			for i := range turns {
				turns[i] = core.UserTurn(fmt.Sprintf("t%d", n))
				n++
			}
			all = append(all, turns...)
			if err := s.AppendTurns(ctx, "s", turns...); err != nil {
				t.Fatalf("append: %v", err)
			}

			h := s.History("s")
			if len(h) > MaxHistoryTurns {
				t.Fatalf("history has %d turns", len(h))
			}
			want := all
			if len(want) > MaxHistoryTurns {
				want = want[len(want)-MaxHistoryTurns:]
			}
			if len(h) != len(want) {
				t.Fatalf("history len %d, want %d", len(h), len(want))
			}
			for i := range want {
				if h[i] != want[i] {
					t.Fatalf("history[%d] = %v, want %v", i, h[i], want[i])
				}
			}
		}
	})
}

func TestTurnGuard(t *testing.T) {
	g := NewTurnGuard()

	release, ok := g.TryAcquire("s1")
	require.True(t, ok)

	_, ok = g.TryAcquire("s1")
	assert.False(t, ok)

	other, ok := g.TryAcquire("s2")
	require.True(t, ok)
	other()

	release()
	release()

	again, ok := g.TryAcquire("s1")
	require.True(t, ok)
	again()
}
