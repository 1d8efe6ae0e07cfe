package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModes(t *testing.T) (*Modes, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	m := NewFromClient(client)
	t.Cleanup(func() { m.Close() })
	return m, mr
}

func TestGetStoredMode(t *testing.T) {
	m, mr := newTestModes(t)
	mr.HSet("selected-mode:5215550001234", "mode", "3")

	mode, err := m.Get(context.Background(), "5215550001234")
	require.NoError(t, err)
	assert.Equal(t, 3, mode)
}

func TestGetMissingModeDefaults(t *testing.T) {
	m, _ := newTestModes(t)

	mode, err := m.Get(context.Background(), "5215550001234")
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, mode)
}

func TestGetMalformedMode(t *testing.T) {
	m, mr := newTestModes(t)
	mr.HSet("selected-mode:5215550001234", "mode", "menu")

	_, err := m.Get(context.Background(), "5215550001234")
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	m, mr := newTestModes(t)
	mr.HSet("selected-mode:5215550001234", "mode", "3")

	require.NoError(t, m.Reset(context.Background(), "5215550001234"))

	mode, err := m.Get(context.Background(), "5215550001234")
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, mode)
}
