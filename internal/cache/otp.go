package cache

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/go-faster/errors"
)

const otpDigits = 6

var (
	// ErrOTPOutstanding : un code est déjà en attente pour cet identifiant.
	ErrOTPOutstanding = errors.New("otp already outstanding")
	// ErrOTPNotFound : aucun code en attente (jamais demandé ou expiré).
	ErrOTPNotFound = errors.New("otp not found")
	// ErrOTPInvalid : code ou secret incorrect.
	ErrOTPInvalid = errors.New("otp invalid")
)

// OTPService émet et vérifie les codes à usage unique.
// Clés : {identifier}:otp (HMAC du code) et {identifier}:otp_secret.
type OTPService struct {
	kv     KV
	expiry time.Duration
	random io.Reader
}

func NewOTPService(kv KV, expiry time.Duration) *OTPService {
	return &OTPService{kv: kv, expiry: expiry, random: rand.Reader}
}

func otpKey(identifier string) string    { return identifier + ":otp" }
func secretKey(identifier string) string { return identifier + ":otp_secret" }

// Expiry renvoie la durée de validité d'un code.
func (s *OTPService) Expiry() time.Duration { return s.expiry }

// Generate émet un nouveau code et son secret.
func (s *OTPService) Generate(ctx context.Context, identifier string) (code, secret string, err error) {
	exists, err := s.kv.Exists(ctx, otpKey(identifier))
	if err != nil {
		return "", "", err
	}
	if exists {
		return "", "", ErrOTPOutstanding
	}

	n, err := rand.Int(s.random, big.NewInt(1_000_000))
	if err != nil {
		return "", "", errors.Wrap(err, "generate otp")
	}
	code = fmt.Sprintf("%0*d", otpDigits, n.Int64())

	raw := make([]byte, 32)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", "", errors.Wrap(err, "generate otp secret")
	}
	secret = base64.RawURLEncoding.EncodeToString(raw)

	if err := s.kv.Set(ctx, otpKey(identifier), hashOTP(code, secret), s.expiry); err != nil {
		return "", "", err
	}
	if err := s.kv.Set(ctx, secretKey(identifier), secret, s.expiry); err != nil {
		return "", "", err
	}
	return code, secret, nil
}

// Secret renvoie le secret du code en attente.
func (s *OTPService) Secret(ctx context.Context, identifier string) (string, error) {
	secret, err := s.kv.Get(ctx, secretKey(identifier))
	if errors.Is(err, ErrNotFound) {
		return "", ErrOTPNotFound
	}
	return secret, err
}

// RetryAfter renvoie le temps restant avant qu'un nouveau code puisse être émis.
func (s *OTPService) RetryAfter(ctx context.Context, identifier string) (time.Duration, error) {
	return s.kv.TTL(ctx, otpKey(identifier))
}

// Verify contrôle le couple code/secret sans consommer le code.
func (s *OTPService) Verify(ctx context.Context, identifier, code, secret string) error {
	stored, err := s.kv.Get(ctx, otpKey(identifier))
	if errors.Is(err, ErrNotFound) {
		return ErrOTPNotFound
	}
	if err != nil {
		return err
	}
	storedSecret, err := s.kv.Get(ctx, secretKey(identifier))
	if errors.Is(err, ErrNotFound) {
		return ErrOTPNotFound
	}
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(storedSecret), []byte(secret)) != 1 {
		return ErrOTPInvalid
	}
	if !hmac.Equal([]byte(stored), []byte(hashOTP(code, secret))) {
		return ErrOTPInvalid
	}
	return nil
}

// Clear supprime le code et son secret.
func (s *OTPService) Clear(ctx context.Context, identifier string) error {
	return s.kv.Delete(ctx, otpKey(identifier), secretKey(identifier))
}

// ValidCode vérifie le format (6 chiffres).
func ValidCode(code string) bool {
	if len(code) != otpDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hashOTP(code, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}
