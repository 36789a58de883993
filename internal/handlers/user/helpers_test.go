package user

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"marketplace_back_end/internal/auth"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/repository"
	"marketplace_back_end/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serve exécute une requête JSON ; actor nul = requête anonyme.
func serve(t *testing.T, method, route, target string, body any, actor *models.Actor, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if actor != nil {
			middleware.SetActor(c, *actor)
		}
		c.Next()
	}, h)

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func buyer() *models.Actor {
	return &models.Actor{UserID: uuid.New(), Email: "buyer@example.com", Role: models.RoleBuyer}
}

// ================== FAKES ==================

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[uuid.UUID]*models.User{}}
}

func (f *fakeUsers) add(u models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.users[u.ID] = &u
	return &u
}

func (f *fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsers) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.PhoneNumber == phone })
}

func (f *fakeUsers) FindByLogin(_ context.Context, login string) (*models.User, error) {
	return f.find(func(u *models.User) bool {
		return u.IsVerified && (u.Email == login || u.PhoneNumber == login)
	})
}

func (f *fakeUsers) VerifiedConflicts(_ context.Context, email, phone string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var emailTaken, phoneTaken bool
	for _, u := range f.users {
		if !u.IsVerified {
			continue
		}
		emailTaken = emailTaken || u.Email == email
		phoneTaken = phoneTaken || u.PhoneNumber == phone
	}
	return emailTaken, phoneTaken, nil
}

func (f *fakeUsers) SaveUnverified(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.users {
		if !existing.IsVerified && (existing.Email == u.Email || existing.PhoneNumber == u.PhoneNumber) {
			delete(f.users, id)
		}
	}
	u.ID = uuid.New()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) MarkVerified(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsVerified, u.IsActive = true, true
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Gender != nil {
		u.Gender = *upd.Gender
	}
	cp := *u
	return &cp, nil
}

type fakeSessions struct {
	mu      sync.Mutex
	created []uuid.UUID
	revoked []uuid.UUID
}

func (f *fakeSessions) Create(_ context.Context, u models.User) (utils.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, u.ID)
	return utils.TokenPair{Access: "access-" + u.ID.String(), Refresh: "refresh-" + u.ID.String()}, nil
}

func (f *fakeSessions) Refresh(_ context.Context, refresh string) (utils.TokenPair, error) {
	if refresh != "valid-refresh" {
		return utils.TokenPair{}, auth.ErrInvalidToken
	}
	return utils.TokenPair{Access: "rotated-access", Refresh: "rotated-refresh"}, nil
}

func (f *fakeSessions) Revoke(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, id)
	return nil
}

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

type fakeMailer struct {
	sent chan sentMail
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: make(chan sentMail, 8)}
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html string, _ ...utils.Attachment) error {
	m.sent <- sentMail{To: to, Subject: subject, HTML: html}
	return nil
}
