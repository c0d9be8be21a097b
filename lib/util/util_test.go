package util

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseAll_ReverseOrder(t *testing.T) {
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		RegisterCloser(closerFunc(func() error {
			order = append(order, i)
			if i == 1 {
				return errors.New("close failed")
			}
			return nil
		}))
	}
	CloseAll()
	assert.Equal(t, []int{2, 1, 0}, order)

	CloseAll()
	assert.Len(t, order, 3, "the list is cleared")
}

func TestUserHome_FollowsHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	assert.Equal(t, dir, UserHome())
}

func TestCheckFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	assert.False(t, CheckFileExists(path))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	assert.True(t, CheckFileExists(path))
}
