package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	f := NewFile(path)

	data, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, data, "absent file reads as empty, not an error")

	require.NoError(t, f.Save([]byte(`[{"id":"a"}]`)))

	data, err = f.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"id":"a"}]`), data)
}

func TestFileSaveOverwrites(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "history.json"))

	require.NoError(t, f.Save([]byte("first")))
	require.NoError(t, f.Save([]byte("second")))

	data, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestFileClearIdempotent(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, f.Save([]byte("payload")))

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear(), "clearing an absent slot is not an error")

	data, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestMemIsolation(t *testing.T) {
	m := NewMem()
	src := []byte("payload")
	require.NoError(t, m.Save(src))
	src[0] = 'X'

	data, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data, "slot holds its own copy")
}
