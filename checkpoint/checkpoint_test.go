package checkpoint

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct{ payload string }

func (f fakeModel) Save(filename string) error {
	return ioutil.WriteFile(filename, []byte(f.payload), 0644)
}

type failingModel struct{}

func (failingModel) Save(string) error { return errors.New("disk full") }

func TestSaveLatest(t *testing.T) {
	logDir := t.TempDir()
	_, _, err := Latest(logDir)
	assert.Equal(t, ErrNoCheckpoint, errors.Cause(err))

	m, err := NewManager(logDir, 0)
	require.NoError(t, err)

	for _, step := range []int{0, 100, 20} {
		filename, err := m.Save(fakeModel{payload: "x"}, step)
		require.NoError(t, err)
		assert.FileExists(t, filename)
	}

	// the pointer names the last save, not the highest step
	filename, step, err := Latest(logDir)
	require.NoError(t, err)
	assert.Equal(t, 20, step)
	assert.Equal(t, filepath.Join(logDir, "checkpoints", "model-20.gob"), filename)

	require.NoError(t, os.Remove(filepath.Join(Dir(logDir), pointerFile)))
	_, step, err = Latest(logDir)
	require.NoError(t, err)
	assert.Equal(t, 100, step)
}

func TestPrune(t *testing.T) {
	logDir := t.TempDir()
	m, err := NewManager(logDir, 2)
	require.NoError(t, err)

	for step := 1; step <= 5; step++ {
		_, err := m.Save(fakeModel{}, step*10)
		require.NoError(t, err)
	}
	steps, err := list(Dir(logDir))
	require.NoError(t, err)
	assert.Equal(t, []int{40, 50}, steps)
}

func TestSaveError(t *testing.T) {
	m, err := NewManager(t.TempDir(), 0)
	require.NoError(t, err)
	_, err = m.Save(failingModel{}, 3)
	assert.Error(t, err)
}
