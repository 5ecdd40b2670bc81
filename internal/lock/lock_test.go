//go:build unix

package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bib/pkg/types"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	l, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	require.NoError(t, l.Release())
	require.NoError(t, l.Release(), "release is idempotent")

	again, err := Acquire(path)
	require.NoError(t, err, "lock can be retaken after release")
	require.NoError(t, again.Release())
}

func TestAcquireContended(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	held, err := Acquire(path)
	require.NoError(t, err)
	defer held.Release()

	_, err = Acquire(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrLocked), "got %v", err)
	assert.True(t, types.Retryable(err))
	assert.Contains(t, err.Error(), strconv.Itoa(os.Getpid()))
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
