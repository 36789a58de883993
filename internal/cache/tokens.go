package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// TokenStore tient la liste blanche des jetons valides : un seul jeton
// d'accès et un seul refresh par utilisateur.
type TokenStore struct {
	kv KV
}

func NewTokenStore(kv KV) *TokenStore {
	return &TokenStore{kv: kv}
}

func tokenKey(userID string, kind TokenKind) string {
	return fmt.Sprintf("user:%s:%s", userID, kind)
}

// Replace remplace le jeton courant du type donné.
func (s *TokenStore) Replace(ctx context.Context, userID string, kind TokenKind, token string, ttl time.Duration) error {
	return s.kv.ReplaceSet(ctx, tokenKey(userID, kind), token, ttl)
}

// Contains indique si le jeton fait partie de la liste blanche.
func (s *TokenStore) Contains(ctx context.Context, userID string, kind TokenKind, token string) (bool, error) {
	members, err := s.kv.SMembers(ctx, tokenKey(userID, kind))
	if err != nil {
		return false, errors.Wrap(err, "load allow-list")
	}
	for _, m := range members {
		if m == token {
			return true, nil
		}
	}
	return false, nil
}

// Revoke supprime les deux listes (déconnexion).
func (s *TokenStore) Revoke(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, tokenKey(userID, AccessToken), tokenKey(userID, RefreshToken))
}
