package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxpoint/vaccine-scheduler/internal/identity"
	"github.com/vaxpoint/vaccine-scheduler/internal/session"
)

func TestMemoryStore_CreateGetDelete(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	token, err := store.Create(ctx, session.Session{Kind: identity.KindPatient, Username: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.True(t, sess.IsPatient())
	assert.Equal(t, "alice", sess.Username)

	require.NoError(t, store.Delete(ctx, token))

	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestMemoryStore_UnknownToken(t *testing.T) {
	store := session.NewMemoryStore()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestMemoryStore_TokensAreDistinct(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	sess := session.Session{Kind: identity.KindCaregiver, Username: "bob"}
	t1, err := store.Create(ctx, sess)
	require.NoError(t, err)
	t2, err := store.Create(ctx, sess)
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2)
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	store := session.NewMemoryStore()
	assert.NoError(t, store.Delete(context.Background(), "never-existed"))
}
