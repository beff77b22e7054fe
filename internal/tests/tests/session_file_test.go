package tests

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"quickcommerce/internal/client"
	"quickcommerce/internal/storage"
	"quickcommerce/internal/storage/file"
	"quickcommerce/internal/tests/suite"
	"testing"
)

func TestFileSession_CorruptTokensReadAsAbsent(t *testing.T) {
	dir := t.TempDir()
	backend, err := file.New(dir)
	require.NoError(t, err)

	s := suite.New(t, suite.WithStorage(backend))
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, storage.TokensKey+".json"), []byte("{not json"), 0o600))

	assert.Nil(t, s.Sessions.Tokens(ctx))

	// A call then goes out unauthenticated and ends the session.
	_, err = s.Client.Get(ctx, "/insights/summary", nil)
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	assert.Equal(t, 0, s.API.RefreshCalls())

	_, statErr := os.Stat(filepath.Join(dir, storage.TokensKey+".json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileSession_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := file.New(dir)
	require.NoError(t, err)
	s1 := suite.New(t, suite.WithStorage(first))
	_, err = s1.Auth.Login(ctx, suite.TestUser.Email, "secret")
	require.NoError(t, err)

	second, err := file.New(dir)
	require.NoError(t, err)
	s2 := suite.New(t, suite.WithStorage(second))
	assert.True(t, s2.Sessions.Authenticated(ctx))
	assert.Equal(t, suite.TestUser.Email, s2.Sessions.User(ctx).Email)
}
