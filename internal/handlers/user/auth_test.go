package user

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketplace_back_end/internal/cache"
	"marketplace_back_end/internal/cache/cachetest"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/utils"
)

var codePattern = regexp.MustCompile(`>(\d{6})</p>`)

type authFixture struct {
	h        *AuthHandler
	users    *fakeUsers
	sessions *fakeSessions
	mailer   *fakeMailer
	otp      *cache.OTPService
	resets   *cache.ResetTokens
}

func newAuthFixture() *authFixture {
	kv := cachetest.NewMemKV()
	f := &authFixture{
		users:    newFakeUsers(),
		sessions: &fakeSessions{},
		mailer:   newFakeMailer(),
		otp:      cache.NewOTPService(kv, 2*time.Minute),
		resets:   cache.NewResetTokens(kv, 2*time.Hour),
	}
	f.h = NewAuthHandler(f.users, f.otp, f.resets, f.sessions, f.mailer, zap.NewNop())
	return f
}

func (f *authFixture) code(t *testing.T) string {
	t.Helper()
	select {
	case m := <-f.mailer.sent:
		match := codePattern.FindStringSubmatch(m.HTML)
		require.Len(t, match, 2, "no code in %q", m.Subject)
		return match[1]
	case <-time.After(2 * time.Second):
		t.Fatal("no e-mail sent")
		return ""
	}
}

func (f *authFixture) verifiedUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	return f.users.add(models.User{
		Email:        "ann@example.com",
		PhoneNumber:  "+33612345678",
		PasswordHash: hash,
		FirstName:    "Ann",
		Role:         models.RoleBuyer,
		IsVerified:   true,
		IsActive:     true,
	})
}

func registerBody() map[string]any {
	return map[string]any{
		"email":            "Ann@Example.com",
		"phone_number":     "+33612345678",
		"password":         "s3cret-pass",
		"confirm_password": "s3cret-pass",
		"first_name":       "Ann",
		"last_name":        "Lee",
		"gender":           "female",
		"user_trade_role":  "buyer",
	}
}

func TestRegisterAndVerify(t *testing.T) {
	f := newAuthFixture()

	w := serve(t, http.MethodPost, "/register/", "/register/", registerBody(), nil, f.h.Register)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, "+33612345678", out["phone_number"])
	secret, _ := out["otp_secret"].(string)
	require.NotEmpty(t, secret)
	code := f.code(t)

	u, err := f.users.FindByPhone(t.Context(), "+33612345678")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.False(t, u.IsVerified)

	w = serve(t, http.MethodPatch, "/verify/:otp_secret/", "/verify/"+secret+"/",
		map[string]any{"phone_number": "+33612345678", "otp_code": code}, nil, f.h.Verify)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out = decode(t, w)
	assert.Equal(t, "access-"+u.ID.String(), out["access"])

	u, err = f.users.FindByID(t.Context(), u.ID)
	require.NoError(t, err)
	assert.True(t, u.IsVerified)
	assert.True(t, u.IsActive)

	// Codes consommés, compte vérifié.
	w = serve(t, http.MethodPatch, "/verify/:otp_secret/", "/verify/"+secret+"/",
		map[string]any{"phone_number": "+33612345678", "otp_code": code}, nil, f.h.Verify)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Unverified User not found."}`, w.Body.String())
}

func TestRegisterOutstandingOTPReturnsSameSecret(t *testing.T) {
	f := newAuthFixture()

	w := serve(t, http.MethodPost, "/register/", "/register/", registerBody(), nil, f.h.Register)
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode(t, w)["otp_secret"]
	f.code(t)

	w = serve(t, http.MethodPost, "/register/", "/register/", registerBody(), nil, f.h.Register)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, first, decode(t, w)["otp_secret"])
	assert.Empty(t, f.mailer.sent)
}

func TestRegisterRejections(t *testing.T) {
	f := newAuthFixture()
	f.verifiedUser(t, "s3cret-pass")

	tests := []struct {
		name   string
		mutate func(map[string]any)
		status int
		want   string
	}{
		{
			name:   "verified email",
			mutate: func(b map[string]any) { b["phone_number"] = "+33700000000" },
			status: http.StatusConflict,
			want:   `{"detail":"User with this email already exists!"}`,
		},
		{
			name:   "verified phone",
			mutate: func(b map[string]any) { b["email"] = "other@example.com" },
			status: http.StatusConflict,
			want:   `{"detail":"User with this phone number already exists!"}`,
		},
		{
			name:   "bad role",
			mutate: func(b map[string]any) { b["user_trade_role"] = "admin" },
			status: http.StatusBadRequest,
			want:   `{"user_trade_role":["user_trade_role must be either 'seller' or 'buyer'."]}`,
		},
		{
			name:   "bad phone",
			mutate: func(b map[string]any) { b["phone_number"] = "0612345678" },
			status: http.StatusBadRequest,
			want:   `{"phone_number":["Invalid phone_number."]}`,
		},
		{
			name:   "password mismatch",
			mutate: func(b map[string]any) { b["confirm_password"] = "different-pass" },
			status: http.StatusBadRequest,
			want:   `{"confirm_password":["Passwords do not match."]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := registerBody()
			tt.mutate(body)
			w := serve(t, http.MethodPost, "/register/", "/register/", body, nil, f.h.Register)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestVerifyMessages(t *testing.T) {
	f := newAuthFixture()
	w := serve(t, http.MethodPost, "/register/", "/register/", registerBody(), nil, f.h.Register)
	require.Equal(t, http.StatusCreated, w.Code)
	secret := decode(t, w)["otp_secret"].(string)
	f.code(t)

	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"missing phone", `{"otp_code":"123456"}`, 400, "phone_number is required."},
		{"invalid phone", `{"phone_number":"abc","otp_code":"123456"}`, 400, "Invalid phone_number."},
		{"unknown user", `{"phone_number":"+33799999999","otp_code":"123456"}`, 404, "Unverified User not found."},
		{"missing code", `{"phone_number":"+33612345678"}`, 400, "otp_code is required."},
		{"blank code", `{"phone_number":"+33612345678","otp_code":""}`, 400, "otp_code can not be blank."},
		{"bad format", `{"phone_number":"+33612345678","otp_code":"12ab"}`, 400, "Invalid otp_code format."},
		{"wrong code", `{"phone_number":"+33612345678","otp_code":"000000"}`, 400, "Incorrect otp_code."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, http.MethodPatch, "/verify/:otp_secret/", "/verify/"+secret+"/", tt.body, nil, f.h.Verify)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["message"])
		})
	}
}

func TestLogin(t *testing.T) {
	f := newAuthFixture()
	u := f.verifiedUser(t, "s3cret-pass")

	w := serve(t, http.MethodPost, "/login/", "/login/",
		map[string]any{"email_or_phone_number": "ANN@example.com", "password": "s3cret-pass"}, nil, f.h.Login)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "access-"+u.ID.String(), decode(t, w)["access"])

	w = serve(t, http.MethodPost, "/login/", "/login/",
		map[string]any{"email_or_phone_number": "+33612345678", "password": "wrong-pass"}, nil, f.h.Login)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid user credentials."}`, w.Body.String())

	w = serve(t, http.MethodPost, "/login/", "/login/",
		map[string]any{"email_or_phone_number": "nobody@example.com", "password": "s3cret-pass"}, nil, f.h.Login)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	f := newAuthFixture()

	w := serve(t, http.MethodPost, "/refresh/", "/refresh/", map[string]any{"refresh": "valid-refresh"}, nil, f.h.Refresh)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rotated-access", decode(t, w)["access"])

	w = serve(t, http.MethodPost, "/refresh/", "/refresh/", map[string]any{"refresh": "stale"}, nil, f.h.Refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_not_valid", decode(t, w)["code"])

	actor := buyer()
	w = serve(t, http.MethodPost, "/logout/", "/logout/", nil, actor, f.h.Logout)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, actor.UserID, f.sessions.revoked[0])
}

func TestMeAndUpdate(t *testing.T) {
	f := newAuthFixture()
	u := f.verifiedUser(t, "s3cret-pass")
	actor := &models.Actor{UserID: u.ID, Role: models.RoleBuyer}

	w := serve(t, http.MethodGet, "/me/", "/me/", nil, actor, f.h.Me)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "ann@example.com", out["email"])
	assert.NotContains(t, out, "password_hash")

	w = serve(t, http.MethodPatch, "/me/", "/me/", map[string]any{"last_name": "Smith"}, actor, f.h.UpdateMe)
	require.Equal(t, http.StatusOK, w.Code)
	out = decode(t, w)
	assert.Equal(t, "Smith", out["last_name"])
	assert.Equal(t, "Ann", out["first_name"])
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture()
	u := f.verifiedUser(t, "s3cret-pass")
	actor := &models.Actor{UserID: u.ID, Role: models.RoleBuyer}

	w := serve(t, http.MethodPut, "/change/", "/change/",
		map[string]any{"old_password": "wrong-pass", "new_password": "n3w-password"}, actor, f.h.ChangePassword)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid user credentials."}`, w.Body.String())

	w = serve(t, http.MethodPut, "/change/", "/change/",
		map[string]any{"old_password": "s3cret-pass", "new_password": "n3w-password"}, actor, f.h.ChangePassword)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := f.users.FindByID(t.Context(), u.ID)
	require.NoError(t, err)
	ok, err := utils.VerifyPassword("n3w-password", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChangePasswordInactiveUser(t *testing.T) {
	f := newAuthFixture()
	u := f.verifiedUser(t, "s3cret-pass")
	f.users.users[u.ID].IsActive = false

	w := serve(t, http.MethodPut, "/change/", "/change/",
		map[string]any{"old_password": "s3cret-pass", "new_password": "n3w-password"},
		&models.Actor{UserID: u.ID}, f.h.ChangePassword)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"User is inactive."}`, w.Body.String())
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture()
	u := f.verifiedUser(t, "s3cret-pass")

	w := serve(t, http.MethodPost, "/forgot/", "/forgot/", map[string]any{"email": "ann@example.com"}, nil, f.h.Forgot)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, "ann@example.com", out["email"])
	secret := out["otp_secret"].(string)
	code := f.code(t)

	w = serve(t, http.MethodPost, "/forgot/verify/:otp_secret/", "/forgot/verify/"+secret+"/",
		map[string]any{"email": "ann@example.com", "otp_code": "000000"}, nil, f.h.ForgotVerify)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Incorrect otp_code.", decode(t, w)["message"])

	w = serve(t, http.MethodPost, "/forgot/verify/:otp_secret/", "/forgot/verify/"+secret+"/",
		map[string]any{"email": "ann@example.com", "otp_code": code}, nil, f.h.ForgotVerify)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode(t, w)["token"].(string)

	w = serve(t, http.MethodPatch, "/reset/", "/reset/", map[string]any{"token": token, "password": "s3cret-pass"}, nil, f.h.Reset)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"The new password can not be the same as the old password."}`, w.Body.String())

	w = serve(t, http.MethodPatch, "/reset/", "/reset/", map[string]any{"token": token, "password": "n3w-password"}, nil, f.h.Reset)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "access-"+u.ID.String(), decode(t, w)["access"])

	// Jeton consommé.
	w = serve(t, http.MethodPatch, "/reset/", "/reset/", map[string]any{"token": token, "password": "an0ther-pass"}, nil, f.h.Reset)
	assert.JSONEq(t, `{"detail":"Invalid Token."}`, w.Body.String())
}

func TestResetUnknownAndInactive(t *testing.T) {
	f := newAuthFixture()

	token, err := f.resets.Issue(t.Context(), "ghost@example.com")
	require.NoError(t, err)
	w := serve(t, http.MethodPatch, "/reset/", "/reset/", map[string]any{"token": token, "password": "n3w-password"}, nil, f.h.Reset)
	assert.JSONEq(t, `{"detail":"Email not found."}`, w.Body.String())

	u := f.verifiedUser(t, "s3cret-pass")
	f.users.users[u.ID].IsActive = false
	token, err = f.resets.Issue(t.Context(), u.Email)
	require.NoError(t, err)
	w = serve(t, http.MethodPatch, "/reset/", "/reset/", map[string]any{"token": token, "password": "n3w-password"}, nil, f.h.Reset)
	assert.JSONEq(t, `{"detail":"Active user with such email not found."}`, w.Body.String())
}

func TestForgotReusesOutstandingCode(t *testing.T) {
	f := newAuthFixture()

	w := serve(t, http.MethodPost, "/forgot/", "/forgot/", map[string]any{"email": "Ann@Example.com"}, nil, f.h.Forgot)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode(t, w)["otp_secret"]
	f.code(t)

	w = serve(t, http.MethodPost, "/forgot/", "/forgot/", map[string]any{"email": "ann@example.com"}, nil, f.h.Forgot)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, decode(t, w)["otp_secret"])

	select {
	case m := <-f.mailer.sent:
		t.Fatalf("unexpected second e-mail %q", m.Subject)
	case <-time.After(100 * time.Millisecond):
	}
}
