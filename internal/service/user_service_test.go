package service

import (
	"context"
	"testing"
	"time"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokens := jwt.NewService("test-secret", time.Hour)
	svc := NewUserService(f.users, tokens)

	auth, err := svc.Register(ctx, models.RegisterRequest{Username: "carol", Password: "segredo"})
	require.NoError(t, err)
	assert.Equal(t, "carol@whatsjuju.local", auth.User.Email)
	assert.NotEqual(t, "segredo", auth.User.Password)

	claims, err := tokens.ValidateToken(auth.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.User.ID, claims.UserID)

	for _, login := range []string{"carol", "carol@whatsjuju.local"} {
		got, err := svc.Login(ctx, models.LoginRequest{Login: login, Password: "segredo"})
		require.NoError(t, err, login)
		assert.Equal(t, auth.User.ID, got.User.ID)
	}

	_, err = svc.Login(ctx, models.LoginRequest{Login: "carol", Password: "errada"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(ctx, models.LoginRequest{Login: "ninguem", Password: "segredo"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	me, err := svc.Me(ctx, auth.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", me.Username)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewUserService(f.users, jwt.NewService("s", time.Hour))

	tests := []struct {
		name string
		req  models.RegisterRequest
		kind error
	}{
		{"short username", models.RegisterRequest{Username: "ab", Password: "segredo"}, ErrInvalidInput},
		{"short password", models.RegisterRequest{Username: "dave", Password: "123"}, ErrInvalidInput},
		{"taken username", models.RegisterRequest{Username: "alice", Password: "segredo"}, ErrConflict},
		{"taken email", models.RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "segredo"}, ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.req)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestCharacterService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewCharacterService(f.characters)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 6)

	got, err := svc.Get(ctx, f.goku.ID)
	require.NoError(t, err)
	assert.Equal(t, "goku", got.Slug)

	_, err = svc.Get(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}
