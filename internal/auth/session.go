// Package auth émet et vérifie les sessions JWT adossées à la liste blanche Redis.
package auth

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"marketplace_back_end/internal/cache"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/utils"
)

var (
	// ErrInvalidToken : jeton mal formé, expiré ou absent de la liste blanche.
	ErrInvalidToken = errors.New("Token is invalid or expired.")
	ErrInactiveUser = errors.New("User is inactive.")
)

type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Sessions émet des couples access/refresh et ne valide que les derniers
// jetons émis pour chaque utilisateur.
type Sessions struct {
	issuer *utils.TokenIssuer
	tokens *cache.TokenStore
	users  UserLookup
}

func NewSessions(issuer *utils.TokenIssuer, tokens *cache.TokenStore, users UserLookup) *Sessions {
	return &Sessions{issuer: issuer, tokens: tokens, users: users}
}

// Create émet un nouveau couple et remplace les jetons précédents.
func (s *Sessions) Create(ctx context.Context, user models.User) (utils.TokenPair, error) {
	pair, err := s.issuer.Issue(user)
	if err != nil {
		return utils.TokenPair{}, err
	}
	id := user.ID.String()
	if err := s.tokens.Replace(ctx, id, cache.AccessToken, pair.Access, s.issuer.AccessTTL()); err != nil {
		return utils.TokenPair{}, errors.Wrap(err, "store access token")
	}
	if err := s.tokens.Replace(ctx, id, cache.RefreshToken, pair.Refresh, s.issuer.RefreshTTL()); err != nil {
		return utils.TokenPair{}, errors.Wrap(err, "store refresh token")
	}
	return pair, nil
}

// Refresh échange un refresh valide contre un nouveau couple (rotation).
func (s *Sessions) Refresh(ctx context.Context, refresh string) (utils.TokenPair, error) {
	claims, err := s.verify(ctx, refresh, utils.TokenTypeRefresh, cache.RefreshToken)
	if err != nil {
		return utils.TokenPair{}, err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return utils.TokenPair{}, ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return utils.TokenPair{}, ErrInvalidToken
	}
	if !user.IsActive {
		return utils.TokenPair{}, ErrInactiveUser
	}
	return s.Create(ctx, *user)
}

// Authenticate vérifie un jeton d'accès et renvoie l'acteur correspondant.
func (s *Sessions) Authenticate(ctx context.Context, access string) (models.Actor, error) {
	claims, err := s.verify(ctx, access, utils.TokenTypeAccess, cache.AccessToken)
	if err != nil {
		return models.Actor{}, err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return models.Actor{}, ErrInvalidToken
	}
	return models.Actor{UserID: id, Email: claims.Email, Role: models.Role(claims.Role)}, nil
}

// Revoke invalide les deux jetons de l'utilisateur.
func (s *Sessions) Revoke(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.Revoke(ctx, userID.String())
}

func (s *Sessions) verify(ctx context.Context, token, tokenType string, kind cache.TokenKind) (*utils.TokenClaims, error) {
	claims, err := s.issuer.Parse(token, tokenType)
	if err != nil {
		return nil, ErrInvalidToken
	}
	ok, err := s.tokens.Contains(ctx, claims.UserID, kind, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
