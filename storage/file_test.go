package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"voicerelay/core"
	"voicerelay/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ session.HistoryPersister = (*FilePersister)(nil)
	_ session.HistoryPersister = (*RedisPersister)(nil)
	_ session.HistoryPersister = (*SQLitePersister)(nil)
)

func TestFilePersisterMissingFileIsEmpty(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "nope", "history.json"))
	got, skipped, err := p.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, skipped)
}

func TestFilePersisterSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "history.json")

	p := NewFilePersister(path)
	require.NoError(t, p.Save(ctx, "a", []core.Turn{core.UserTurn("hi"), core.AssistantTurn("hello")}))
	require.NoError(t, p.Save(ctx, "b", []core.Turn{core.UserTurn("yo")}))

	reloaded := NewFilePersister(path)
	got, _, err := reloaded.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Turn{core.UserTurn("hi"), core.AssistantTurn("hello")}, got["a"])
	assert.Equal(t, []core.Turn{core.UserTurn("yo")}, got["b"])

	require.NoError(t, reloaded.Delete(ctx, "a"))
	got, _, err = NewFilePersister(path).LoadAll(ctx)
	require.NoError(t, err)
	assert.NotContains(t, got, "a")
	assert.Contains(t, got, "b")
}

func TestFilePersisterFirstSaveKeepsExistingSessions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"old":[{"role":"user","content":"kept"}]}`), 0644))

	p := NewFilePersister(path)
	require.NoError(t, p.Save(ctx, "new", []core.Turn{core.UserTurn("x")}))

	got, _, err := NewFilePersister(path).LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Turn{core.UserTurn("kept")}, got["old"])
	assert.Contains(t, got, "new")
}

func TestFilePersisterSkipsCorruptEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	content := `{
  "good": [{"role": "user", "content": "hello"}],
  "bad-shape": {"role": "user"},
  "bad-role": [{"role": "robot", "content": "beep"}]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, skipped, err := NewFilePersister(path).LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.Turn{core.UserTurn("hello")}, got["good"])
	assert.ElementsMatch(t, []string{"bad-shape", "bad-role"}, skipped)
}

func TestFilePersisterUnparsableFileIsMovedAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, _, err := NewFilePersister(path).LoadAll(context.Background())
	require.Error(t, err)

	_, statErr := os.Stat(path + ".corrupt")
	assert.NoError(t, statErr)
}

func TestFilePersisterSaveRefusesUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.Mkdir(path, 0755))

	p := NewFilePersister(path)
	err := p.Save(context.Background(), "s1", []core.Turn{core.UserTurn("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not overwriting")
	require.Error(t, p.Delete(context.Background(), "s1"))

	info, statErr := os.Stat(path)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestFilePersisterSaveKeepsFileThatCannotBeMovedAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	original := []byte(`{"other": [{"role": "user"`)
	require.NoError(t, os.WriteFile(path, original, 0644))
	// a non-empty directory in the way makes the rename fail
	require.NoError(t, os.MkdirAll(filepath.Join(path+".corrupt", "keep"), 0755))

	p := NewFilePersister(path)
	err := p.Save(context.Background(), "s1", []core.Turn{core.UserTurn("hi")})
	require.Error(t, err)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, original, data)
}

func TestFilePersisterSaveAfterMovingUnparsableFileAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	p := NewFilePersister(path)
	require.NoError(t, p.Save(context.Background(), "s1", []core.Turn{core.UserTurn("hi")}))

	corrupt, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(corrupt))

	got, _, err := NewFilePersister(path).LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.Turn{core.UserTurn("hi")}, got["s1"])
}
