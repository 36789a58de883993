package cache

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"time"

	"github.com/go-faster/errors"
)

// ErrResetTokenInvalid : jeton inconnu, expiré ou déjà consommé.
var ErrResetTokenInvalid = errors.New("reset token invalid")

// ResetTokens gère les jetons de réinitialisation du mot de passe.
// Seul le condensat SHA-256 du jeton est stocké.
type ResetTokens struct {
	kv     KV
	ttl    time.Duration
	random io.Reader
}

func NewResetTokens(kv KV, ttl time.Duration) *ResetTokens {
	return &ResetTokens{kv: kv, ttl: ttl, random: rand.Reader}
}

func resetKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "password_reset:" + hex.EncodeToString(sum[:])
}

// Issue crée un jeton lié à l'e-mail.
func (r *ResetTokens) Issue(ctx context.Context, email string) (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(r.random, raw); err != nil {
		return "", errors.Wrap(err, "generate reset token")
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	if err := r.kv.Set(ctx, resetKey(token), email, r.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Lookup renvoie l'e-mail associé au jeton.
func (r *ResetTokens) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrResetTokenInvalid
	}
	email, err := r.kv.Get(ctx, resetKey(token))
	if errors.Is(err, ErrNotFound) {
		return "", ErrResetTokenInvalid
	}
	return email, err
}

// Consume invalide le jeton.
func (r *ResetTokens) Consume(ctx context.Context, token string) error {
	return r.kv.Delete(ctx, resetKey(token))
}
