package sessionfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s := NewStore(path, "local")

	user, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, user)

	require.NoError(t, s.Save(&identity.Identity{UID: "u1", Email: "a@b.com", DisplayName: "a"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := NewStore(path, "local").Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "u1", loaded.UID)
	assert.Equal(t, "a", loaded.DisplayName)

	require.NoError(t, s.Save(nil))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, s.Save(nil))
}

func TestStoreOtherProviderIsSignedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, NewStore(path, "firebase").Save(&identity.Identity{UID: "u1"}))

	user, err := NewStore(path, "local").Load()
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewStore(path, "local").Load()
	require.Error(t, err)
}

func TestStoreRefreshIgnoresOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s := NewStore(path, "local")
	require.NoError(t, s.Save(&identity.Identity{UID: "u1"}))

	_, changed, err := s.refresh()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, NewStore(path, "local").Save(&identity.Identity{UID: "u2"}))
	user, changed, err := s.refresh()
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, "u2", user.UID)
}

func TestWatcherReportsExternalChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	own := NewStore(path, "local")
	_, err := own.Load()
	require.NoError(t, err)

	changes := make(chan *identity.Identity, 4)
	w, err := NewWatcher(own, WatcherConfig{
		DebounceInterval: 40 * time.Millisecond,
		OnChange:         func(u *identity.Identity) { changes <- u },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	other := NewStore(path, "local")
	require.NoError(t, other.Save(&identity.Identity{UID: "elsewhere"}))

	select {
	case u := <-changes:
		require.NotNil(t, u)
		assert.Equal(t, "elsewhere", u.UID)
	case <-time.After(3 * time.Second):
		t.Fatal("external sign-in not reported")
	}

	require.NoError(t, other.Save(nil))
	select {
	case u := <-changes:
		assert.Nil(t, u)
	case <-time.After(3 * time.Second):
		t.Fatal("external sign-out not reported")
	}
}

func TestWatcherIgnoresOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	own := NewStore(path, "local")

	changes := make(chan *identity.Identity, 4)
	w, err := NewWatcher(own, WatcherConfig{
		DebounceInterval: 40 * time.Millisecond,
		OnChange:         func(u *identity.Identity) { changes <- u },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, own.Save(&identity.Identity{UID: "me"}))

	select {
	case u := <-changes:
		t.Fatalf("own write reported as external change: %+v", u)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	w, err := NewWatcher(NewStore(filepath.Join(t.TempDir(), FileName), "local"), WatcherConfig{})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcherStartFailureReleasesWatcher(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	w, err := NewWatcher(NewStore(filepath.Join(blocker, "sub", FileName), "local"), WatcherConfig{})
	require.NoError(t, err)

	require.Error(t, w.Start(context.Background()))
	assert.False(t, w.Watching())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Error(t, w.Start(context.Background()), "stopped watcher cannot restart")
}
