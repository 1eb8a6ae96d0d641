package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lifecycle(t *testing.T) {
	reg := NewRegistry()
	w, c := newTestWatcher(t, afero.NewMemMapFs(), newRecorder().handle)

	require.NoError(t, reg.Create("blender", w))
	assert.ErrorIs(t, reg.Create("blender", w), ErrExists)

	got, ok := reg.Get("blender")
	require.True(t, ok)
	assert.Same(t, w, got)

	require.NoError(t, reg.Start(context.Background(), "blender"))
	assert.Equal(t, StateRunning, w.State())
	require.True(t, c.WaitForWaiter(1, time.Second))

	require.NoError(t, reg.Stop("blender"))
	assert.Equal(t, StateStopped, w.State())
	_, ok = reg.Get("blender")
	assert.True(t, ok, "stop keeps the watcher registered")

	require.NoError(t, reg.Start(context.Background(), "blender"))
	require.NoError(t, reg.Dispose("blender"))
	assert.Equal(t, StateStopped, w.State())
	_, ok = reg.Get("blender")
	assert.False(t, ok)
}

func TestRegistry_UnknownNames(t *testing.T) {
	reg := NewRegistry()

	assert.ErrorIs(t, reg.Start(context.Background(), "nope"), ErrNotFound)
	assert.ErrorIs(t, reg.Stop("nope"), ErrNotFound)
	assert.ErrorIs(t, reg.Dispose("nope"), ErrNotFound)
	assert.Error(t, reg.Create("nil", nil))
}

func TestRegistry_StopAll(t *testing.T) {
	reg := NewRegistry()
	a, _ := newTestWatcher(t, afero.NewMemMapFs(), newRecorder().handle)
	b, _ := newTestWatcher(t, afero.NewMemMapFs(), newRecorder().handle)
	idle, _ := newTestWatcher(t, afero.NewMemMapFs(), newRecorder().handle)

	require.NoError(t, reg.Create("b", b))
	require.NoError(t, reg.Create("a", a))
	require.NoError(t, reg.Create("idle", idle))
	assert.Equal(t, []string{"a", "b", "idle"}, reg.Names())

	require.NoError(t, reg.Start(context.Background(), "a"))
	require.NoError(t, reg.Start(context.Background(), "b"))

	reg.StopAll()
	for _, w := range []*Watcher{a, b, idle} {
		assert.Equal(t, StateStopped, w.State())
	}
	assert.Len(t, reg.Names(), 3)
}
