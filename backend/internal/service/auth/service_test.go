package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"prompt-vault/backend/internal/infra/captcha"
	"prompt-vault/backend/internal/infra/store/storetest"
	"prompt-vault/backend/internal/infra/token"
	"prompt-vault/backend/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T, cm CaptchaManager) (*Service, *token.SessionManager, *token.MemoryRevocationStore) {
	t.Helper()
	acc := storetest.Open(t)
	sessions := token.NewSessionManager("test-secret", time.Hour)
	revocations := token.NewMemoryRevocationStore()
	svc := NewService(repository.NewUserRepository(acc), sessions, revocations, cm).WithHashCost(bcrypt.MinCost)
	return svc, sessions, revocations
}

func TestRegisterAndLogin(t *testing.T) {
	svc, sessions, _ := newTestService(t, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterParams{Email: "  Alice@Example.com ", Password: "secret123", Name: "Alice"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email should be normalised, got %q", user.Email)
	}
	if !user.HasPassword() || *user.PasswordHash == "secret123" {
		t.Fatalf("password must be stored hashed")
	}

	if _, err := svc.Register(ctx, RegisterParams{Email: "alice@example.com", Password: "another1"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	session, err := svc.Login(ctx, LoginParams{Email: "ALICE@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := sessions.Parse(session.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email || claims.Name != "Alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterParams{Email: "bob@example.com", Password: "secret123"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, LoginParams{Email: "bob@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("wrong password should fail with ErrInvalidLogin, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginParams{Email: "nobody@example.com", Password: "secret123"}); !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("unknown email should fail with ErrInvalidLogin, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _, revocations := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterParams{Email: "carol@example.com", Password: "secret123"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	session, err := svc.Login(ctx, LoginParams{Email: "carol@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, session.Claims.TokenID, session.Claims.ExpiresAt); err != nil {
		t.Fatalf("logout: %v", err)
	}
	revoked, err := revocations.IsRevoked(ctx, session.Claims.TokenID)
	if err != nil || !revoked {
		t.Fatalf("session should be revoked, revoked=%v err=%v", revoked, err)
	}
}

func TestRegisterWithCaptcha(t *testing.T) {
	answers := captcha.NewMemoryStore(time.Minute)
	manager := captcha.NewManager(answers, nil, captcha.Options{})
	svc, _, _ := newTestService(t, manager)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterParams{Email: "dave@example.com", Password: "secret123"}); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("expected ErrCaptchaRequired, got %v", err)
	}

	_ = answers.Set(ctx, "cid", "12345", time.Minute)
	if _, err := svc.Register(ctx, RegisterParams{Email: "dave@example.com", Password: "secret123", CaptchaID: "cid", CaptchaCode: "00000"}); !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatalf("expected ErrCaptchaInvalid, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterParams{Email: "dave@example.com", Password: "secret123", CaptchaID: "cid", CaptchaCode: "12345"}); !errors.Is(err, ErrCaptchaExpired) {
		t.Fatalf("captcha must be consumed after a failed attempt, got %v", err)
	}

	_ = answers.Set(ctx, "cid2", "67890", time.Minute)
	if _, err := svc.Register(ctx, RegisterParams{Email: "dave@example.com", Password: "secret123", CaptchaID: "cid2", CaptchaCode: "67890"}); err != nil {
		t.Fatalf("register with valid captcha: %v", err)
	}
}

func TestCaptchaDisabled(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	if _, _, err := svc.Captcha(context.Background(), "127.0.0.1"); !errors.Is(err, ErrCaptchaDisabled) {
		t.Fatalf("expected ErrCaptchaDisabled, got %v", err)
	}
}
