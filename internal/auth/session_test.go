package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace_back_end/internal/cache"
	"marketplace_back_end/internal/cache/cachetest"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/utils"
)

type userMap map[uuid.UUID]models.User

func (m userMap) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &u, nil
}

func newSessions(users userMap) *Sessions {
	issuer := utils.NewTokenIssuer("test-secret-test-secret-test-secret", 30*time.Minute, 7*24*time.Hour)
	return NewSessions(issuer, cache.NewTokenStore(cachetest.NewMemKV()), users)
}

func TestSessionsCreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	user := models.User{ID: uuid.New(), Email: "a@example.com", Role: models.RoleSeller, IsActive: true}
	s := newSessions(userMap{user.ID: user})

	pair, err := s.Create(ctx, user)
	require.NoError(t, err)

	actor, err := s.Authenticate(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, actor.UserID)
	assert.Equal(t, models.RoleSeller, actor.Role)

	_, err = s.Authenticate(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token is not an access token")
}

func TestSessionsRotation(t *testing.T) {
	ctx := context.Background()
	user := models.User{ID: uuid.New(), Email: "a@example.com", Role: models.RoleBuyer, IsActive: true}
	s := newSessions(userMap{user.ID: user})

	first, err := s.Create(ctx, user)
	require.NoError(t, err)
	second, err := s.Refresh(ctx, first.Refresh)
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, first.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = s.Refresh(ctx, first.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Authenticate(ctx, second.Access)
	assert.NoError(t, err)
}

func TestSessionsRevoke(t *testing.T) {
	ctx := context.Background()
	user := models.User{ID: uuid.New(), Email: "a@example.com", Role: models.RoleBuyer, IsActive: true}
	s := newSessions(userMap{user.ID: user})

	pair, err := s.Create(ctx, user)
	require.NoError(t, err)
	require.NoError(t, s.Revoke(ctx, user.ID))

	_, err = s.Authenticate(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = s.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionsRefreshInactiveUser(t *testing.T) {
	ctx := context.Background()
	user := models.User{ID: uuid.New(), Email: "a@example.com", Role: models.RoleBuyer, IsActive: true}
	users := userMap{user.ID: user}
	s := newSessions(users)

	pair, err := s.Create(ctx, user)
	require.NoError(t, err)

	user.IsActive = false
	users[user.ID] = user
	_, err = s.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInactiveUser)
}
