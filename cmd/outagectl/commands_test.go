package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outage-verify-service/internal/adapter/memory"
	"github.com/couchcryptid/outage-verify-service/internal/domain"
)

type fakeStore struct {
	*memory.Store
	indexed bool
	closed  bool
}

func (f *fakeStore) EnsureIndexes(context.Context) error {
	f.indexed = true
	return nil
}

func (f *fakeStore) Close(context.Context) error {
	f.closed = true
	return nil
}

func execute(t *testing.T, store *fakeStore, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func(context.Context, string, string) (adminStore, error) {
		return store, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIndexesCommand(t *testing.T) {
	store := &fakeStore{Store: memory.NewStore()}

	out, err := execute(t, store, "indexes", "--database", "outages_test")
	require.NoError(t, err)

	assert.True(t, store.indexed)
	assert.True(t, store.closed)
	assert.Contains(t, out, "indexes ensured on outages_test")
}

func TestUserAddCommand(t *testing.T) {
	store := &fakeStore{Store: memory.NewStore()}

	out, err := execute(t, store, "user", "add", "--id", "asha", "--lng", "85.3", "--lat", "27.7")
	require.NoError(t, err)
	assert.Contains(t, out, "registered asha")

	u, err := store.FindUser(context.Background(), "asha")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCredibility, u.CredibilityScore)
	assert.True(t, store.closed)
}

func TestUserAddCommand_OutsideRegion(t *testing.T) {
	store := &fakeStore{Store: memory.NewStore()}

	_, err := execute(t, store, "user", "add", "--id", "asha", "--lng", "2.35", "--lat", "48.85")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOutsideRegion)
}

func TestUserAddCommand_RegionFromEnv(t *testing.T) {
	t.Setenv("REGION_MIN_LNG", "-10")
	t.Setenv("REGION_MAX_LNG", "5")
	t.Setenv("REGION_MIN_LAT", "40")
	t.Setenv("REGION_MAX_LAT", "55")
	store := &fakeStore{Store: memory.NewStore()}

	out, err := execute(t, store, "user", "add", "--id", "amelie", "--lng", "2.35", "--lat", "48.85")
	require.NoError(t, err)
	assert.Contains(t, out, "registered amelie")

	_, err = execute(t, store, "user", "add", "--id", "asha", "--lng", "85.3", "--lat", "27.7")
	assert.ErrorIs(t, err, domain.ErrOutsideRegion)

	_, err = store.FindUser(context.Background(), "asha")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserAddCommand_InvalidRegionEnv(t *testing.T) {
	t.Setenv("REGION_MIN_LAT", "south")
	store := &fakeStore{Store: memory.NewStore()}

	_, err := execute(t, store, "user", "add", "--id", "asha", "--lng", "85.3", "--lat", "27.7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REGION_MIN_LAT")
	assert.False(t, store.closed)
}

func TestUserAddCommand_RequiresFlags(t *testing.T) {
	_, err := execute(t, &fakeStore{Store: memory.NewStore()}, "user", "add", "--id", "asha")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestConnectFailure(t *testing.T) {
	root := newRootCmd(func(context.Context, string, string) (adminStore, error) {
		return nil, errors.New("connection refused")
	})
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"indexes"})
	err := root.ExecuteContext(context.Background())
	assert.EqualError(t, err, "connection refused")
}

func TestReplayCommand(t *testing.T) {
	out, err := execute(t, nil, "replay", "../../internal/scenario/testdata/creator_resolves.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "scenario: creator resolves a confirmed outage")
	assert.Contains(t, out, "resolved after 95 minutes")
	assert.Contains(t, out, "ok: 10 steps")
}

func TestReplayCommand_MissingFile(t *testing.T) {
	_, err := execute(t, nil, "replay", "testdata/nope.yaml")
	require.Error(t, err)
}

func TestRun_ExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"replay"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "outagectl:")
}
