package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-system/internal/core/domain"
	"github.com/99minutos/auth-system/internal/core/ports"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput) (*domain.Identity, error)
	loginFn    func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error)
	renewFn    func(ctx context.Context, token string) (*ports.RenewResult, error)
	logoutFn   func(ctx context.Context, token string) error
	requestFn  func(ctx context.Context, email string) (*ports.ProofIssued, error)
	resetFn    func(ctx context.Context, token, password string) error
	verifyFn   func(ctx context.Context, token string) error
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Identity, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	return s.loginFn(ctx, in)
}

func (s *stubAuthService) RenewAccessToken(ctx context.Context, token string) (*ports.RenewResult, error) {
	return s.renewFn(ctx, token)
}

func (s *stubAuthService) Logout(ctx context.Context, token string) error {
	return s.logoutFn(ctx, token)
}

func (s *stubAuthService) RequestPasswordReset(ctx context.Context, email string) (*ports.ProofIssued, error) {
	return s.requestFn(ctx, email)
}

func (s *stubAuthService) CompletePasswordReset(ctx context.Context, token, password string) error {
	return s.resetFn(ctx, token, password)
}

func (s *stubAuthService) RequestEmailVerification(ctx context.Context, email string) (*ports.ProofIssued, error) {
	return s.requestFn(ctx, email)
}

func (s *stubAuthService) CompleteEmailVerification(ctx context.Context, token string) error {
	return s.verifyFn(ctx, token)
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(_ context.Context, in ports.RegisterInput) (*domain.Identity, error) {
			if in.Name != "Ana" || in.Email != "ana@x.io" || in.Password != "secret123" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.Identity{ID: "id-1", Name: in.Name, Email: in.Email, Role: domain.RoleUser}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/api/auth/register", `{"name":"Ana","email":"ana@x.io","password":"secret123"}`)

	if err := NewAuthHandler(stub, false).Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	user, ok := resp["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user in response")
	}
	if user["email"] != "ana@x.io" || user["verified"] != false || user["role"] != "user" {
		t.Fatalf("unexpected user payload: %+v", user)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("response leaks password material: %s", rec.Body.String())
	}
}

func TestAuthHandler_Register_ShortPasswordIsValidationError(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, ports.RegisterInput) (*domain.Identity, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	c, _ := newContext(http.MethodPost, "/api/auth/register", `{"name":"Ana","email":"ana@x.io","password":"short"}`)

	err := NewAuthHandler(stub, false).Register(c)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthHandler_Register_PropagatesDuplicate(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, ports.RegisterInput) (*domain.Identity, error) {
			return nil, domain.ErrDuplicateEmail
		},
	}
	c, _ := newContext(http.MethodPost, "/api/auth/register", `{"name":"Ana","email":"ana@x.io","password":"secret123"}`)

	if err := NewAuthHandler(stub, false).Register(c); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestAuthHandler_Login_SetsRefreshCookie(t *testing.T) {
	expires := time.Now().Add(7 * 24 * time.Hour)
	stub := &stubAuthService{
		loginFn: func(_ context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
			return &ports.LoginResult{
				AccessToken:      "access",
				RefreshToken:     "refresh",
				RefreshExpiresAt: expires,
				Identity:         &domain.Identity{ID: "id-1", Email: in.Email, Verified: true},
			}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/api/auth/login", `{"email":"ana@x.io","password":"secret123"}`)

	if err := NewAuthHandler(stub, true).Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.AccessToken != "access" || resp.RefreshToken != "refresh" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}

	ck := findCookie(rec, RefreshCookie)
	if ck == nil {
		t.Fatal("expected refresh cookie")
	}
	if ck.Value != "refresh" || !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteStrictMode {
		t.Fatalf("unexpected cookie attributes: %+v", ck)
	}
}

func TestAuthHandler_Login_PropagatesNotVerified(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(context.Context, ports.LoginInput) (*ports.LoginResult, error) {
			return nil, domain.ErrNotVerified
		},
	}
	c, rec := newContext(http.MethodPost, "/api/auth/login", `{"email":"ana@x.io","password":"secret123"}`)

	if err := NewAuthHandler(stub, false).Login(c); !errors.Is(err, domain.ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
	if findCookie(rec, RefreshCookie) != nil {
		t.Fatal("no cookie expected on failed login")
	}
}

func TestAuthHandler_Refresh_PrefersCookie(t *testing.T) {
	var got string
	stub := &stubAuthService{
		renewFn: func(_ context.Context, token string) (*ports.RenewResult, error) {
			got = token
			return &ports.RenewResult{AccessToken: "a2", RefreshToken: "r2", RefreshExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/api/auth/refresh-token", `{"refreshToken":"from-body"}`)
	c.Request().AddCookie(&http.Cookie{Name: RefreshCookie, Value: "from-cookie"})

	if err := NewAuthHandler(stub, false).Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got != "from-cookie" {
		t.Fatalf("expected cookie token, got %q", got)
	}
	if ck := findCookie(rec, RefreshCookie); ck == nil || ck.Value != "r2" {
		t.Fatalf("expected rotated cookie, got %+v", ck)
	}
}

func TestAuthHandler_Refresh_FallsBackToBody(t *testing.T) {
	var got string
	stub := &stubAuthService{
		renewFn: func(_ context.Context, token string) (*ports.RenewResult, error) {
			got = token
			return &ports.RenewResult{AccessToken: "a2", RefreshToken: "r2"}, nil
		},
	}
	c, _ := newContext(http.MethodPost, "/api/auth/refresh-token", `{"refreshToken":"from-body"}`)

	if err := NewAuthHandler(stub, false).Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got != "from-body" {
		t.Fatalf("expected body token, got %q", got)
	}
}

func TestAuthHandler_Refresh_MissingToken(t *testing.T) {
	stub := &stubAuthService{
		renewFn: func(context.Context, string) (*ports.RenewResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	c, _ := newContext(http.MethodGet, "/api/auth/refresh-token", "")

	if err := NewAuthHandler(stub, false).Refresh(c); !errors.Is(err, domain.ErrInvalidOrExpiredSession) {
		t.Fatalf("expected ErrInvalidOrExpiredSession, got %v", err)
	}
}

func TestAuthHandler_Refresh_FailureClearsCookie(t *testing.T) {
	stub := &stubAuthService{
		renewFn: func(context.Context, string) (*ports.RenewResult, error) {
			return nil, domain.ErrInvalidOrExpiredSession
		},
	}
	c, rec := newContext(http.MethodGet, "/api/auth/refresh-token", "")
	c.Request().AddCookie(&http.Cookie{Name: RefreshCookie, Value: "stale"})

	if err := NewAuthHandler(stub, false).Refresh(c); !errors.Is(err, domain.ErrInvalidOrExpiredSession) {
		t.Fatalf("expected ErrInvalidOrExpiredSession, got %v", err)
	}
	ck := findCookie(rec, RefreshCookie)
	if ck == nil || ck.MaxAge >= 0 {
		t.Fatalf("expected cookie to be cleared, got %+v", ck)
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	var got string
	stub := &stubAuthService{
		logoutFn: func(_ context.Context, token string) error {
			got = token
			return nil
		},
	}
	c, rec := newContext(http.MethodPost, "/api/auth/logout", "")
	c.Request().AddCookie(&http.Cookie{Name: RefreshCookie, Value: "r1"})

	if err := NewAuthHandler(stub, false).Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got != "r1" {
		t.Fatalf("expected r1, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ck := findCookie(rec, RefreshCookie); ck == nil || ck.MaxAge >= 0 {
		t.Fatalf("expected cookie to be cleared, got %+v", ck)
	}
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	var got string
	stub := &stubAuthService{
		requestFn: func(_ context.Context, email string) (*ports.ProofIssued, error) {
			got = email
			return &ports.ProofIssued{Token: "secret-token"}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/api/auth/forgot-password", `{"email":"ana@x.io"}`)

	if err := NewAuthHandler(stub, false).ForgotPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got != "ana@x.io" {
		t.Fatalf("unexpected email %q", got)
	}
	if strings.Contains(rec.Body.String(), "secret-token") {
		t.Fatal("reset token must only travel by mail")
	}
}

func TestAuthHandler_ResetPassword_MismatchedConfirmation(t *testing.T) {
	stub := &stubAuthService{
		resetFn: func(context.Context, string, string) error {
			t.Fatal("service must not be called")
			return nil
		},
	}
	c, _ := newContext(http.MethodPost, "/api/auth/reset-password",
		`{"token":"t","newPassword":"newpass123","confirmPassword":"other12345"}`)

	if err := NewAuthHandler(stub, false).ResetPassword(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthHandler_ResetPassword_Success(t *testing.T) {
	stub := &stubAuthService{
		resetFn: func(_ context.Context, token, password string) error {
			if token != "t" || password != "newpass123" {
				t.Fatalf("unexpected args %q %q", token, password)
			}
			return nil
		},
	}
	c, rec := newContext(http.MethodPost, "/api/auth/reset-password",
		`{"token":"t","newPassword":"newpass123","confirmPassword":"newpass123"}`)

	if err := NewAuthHandler(stub, false).ResetPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_VerifyEmail_ReadsQuery(t *testing.T) {
	var got string
	stub := &stubAuthService{
		verifyFn: func(_ context.Context, token string) error {
			got = token
			return domain.ErrInvalidOrExpiredToken
		},
	}
	c, _ := newContext(http.MethodGet, "/api/auth/verify-email?token=abc", "")

	if err := NewAuthHandler(stub, false).VerifyEmail(c); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
	if got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}
