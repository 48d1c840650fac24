/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:40:06
 * @FilePath: \prompt-vault\backend\internal\service\auth\service.go
 * @LastEditTime: 2025-10-21 15:12:37
 */
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "prompt-vault/backend/internal/domain/user"
	"prompt-vault/backend/internal/infra/captcha"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/infra/token"
	"prompt-vault/backend/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidLogin       = errors.New("invalid email or password")
	ErrCaptchaRequired    = errors.New("captcha is required")
	ErrCaptchaInvalid     = errors.New("captcha verification failed")
	ErrCaptchaExpired     = errors.New("captcha expired or not found")
	ErrCaptchaRateLimited = errors.New("captcha requests too frequent")
	ErrCaptchaDisabled    = errors.New("captcha is not enabled")
)

// CaptchaManager 聚合验证码生成与校验能力，便于在服务层替换实现。
type CaptchaManager interface {
	captcha.Generator
	captcha.Verifier
}

// SessionIssuer 签发会话令牌，目前由 token.SessionManager 实现。
type SessionIssuer interface {
	Issue(identity domain.Identity) (string, token.SessionClaims, error)
}

// Session 是一次登录/注册成功后得到的会话。
type Session struct {
	Token  string
	Claims token.SessionClaims
	User   *domain.User
}

// Service 负责注册、登录、登出。
//
// 依赖说明：
//   - UserRepository：读写用户数据。
//   - SessionIssuer：签发会话 JWT。
//   - RevocationStore：登出时记录被吊销的会话 jti。
//   - CaptchaManager：注册时的图形验证码，按需注入。
type Service struct {
	users       *repository.UserRepository
	sessions    SessionIssuer
	revocations token.RevocationStore
	captcha     CaptchaManager
	logger      *zap.SugaredLogger
	hashCost    int
}

// NewService 创建鉴权服务实例。
func NewService(users *repository.UserRepository, sessions SessionIssuer, revocations token.RevocationStore, cm CaptchaManager) *Service {
	return &Service{
		users:       users,
		sessions:    sessions,
		revocations: revocations,
		captcha:     cm,
		logger:      appLogger.Component("auth.service"),
		hashCost:    bcrypt.DefaultCost,
	}
}

// WithHashCost 调整 bcrypt 成本，测试中用 bcrypt.MinCost 加速。
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// RegisterParams 封装注册接口所需的输入参数。
type RegisterParams struct {
	Email       string
	Password    string
	Name        string
	CaptchaID   string
	CaptchaCode string
}

// LoginParams 封装登录接口所需的输入参数。
type LoginParams struct {
	Email    string
	Password string
}

// Captcha 生成一张图形验证码。
func (s *Service) Captcha(ctx context.Context, ip string) (string, string, error) {
	if s.captcha == nil {
		return "", "", ErrCaptchaDisabled
	}
	id, b64, err := s.captcha.Generate(ctx, ip)
	if err != nil {
		if errors.Is(err, captcha.ErrRateLimited) {
			return "", "", ErrCaptchaRateLimited
		}
		return "", "", fmt.Errorf("generate captcha: %w", err)
	}
	return id, b64, nil
}

// Register 校验验证码（若启用）与邮箱唯一性，写入 bcrypt 哈希后的账号。
func (s *Service) Register(ctx context.Context, params RegisterParams) (*domain.User, error) {
	email := normalizeEmail(params.Email)
	log := s.scope("register").With("email", email)

	if err := s.verifyCaptcha(ctx, log, params.CaptchaID, params.CaptchaCode); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		log.Warnw("email already registered")
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorw("check email unique failed", "error", err)
		return nil, fmt.Errorf("check email unique: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.hashCost)
	if err != nil {
		log.Errorw("hash password failed", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)

	user := &domain.User{
		Email:        email,
		Name:         strings.TrimSpace(params.Name),
		PasswordHash: &hashed,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// 并发注册同一邮箱时由唯一索引兜底。
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Warnw("email registered concurrently")
			return nil, ErrEmailTaken
		}
		log.Errorw("create user failed", "error", err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	log.Infow("user registered", "user_id", user.ID)
	return user, nil
}

// Login 校验邮箱与密码并签发会话。账号不存在与密码错误返回同一个错误。
func (s *Service) Login(ctx context.Context, params LoginParams) (Session, error) {
	email := normalizeEmail(params.Email)
	log := s.scope("login").With("email", email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnw("login email not found")
			return Session{}, ErrInvalidLogin
		}
		log.Errorw("find user failed", "error", err)
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if !user.HasPassword() {
		log.Warnw("account has no local password", "user_id", user.ID)
		return Session{}, ErrInvalidLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(params.Password)); err != nil {
		log.Warnw("password mismatch", "user_id", user.ID)
		return Session{}, ErrInvalidLogin
	}

	raw, claims, err := s.sessions.Issue(domain.IdentityOf(user))
	if err != nil {
		log.Errorw("issue session failed", "error", err, "user_id", user.ID)
		return Session{}, fmt.Errorf("issue session: %w", err)
	}

	log.Infow("login success", "user_id", user.ID)
	return Session{Token: raw, Claims: claims, User: user}, nil
}

// Logout 吊销当前会话的 jti，令牌在自然过期前也不再被接受。
func (s *Service) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.revocations == nil || strings.TrimSpace(tokenID) == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, tokenID, expiresAt); err != nil {
		s.scope("logout").Errorw("revoke session failed", "error", err, "token_id", tokenID)
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *Service) verifyCaptcha(ctx context.Context, log *zap.SugaredLogger, id, code string) error {
	if s.captcha == nil {
		return nil
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(code) == "" {
		log.Warn("captcha required but missing")
		return ErrCaptchaRequired
	}
	if err := s.captcha.Verify(ctx, id, code); err != nil {
		switch {
		case errors.Is(err, captcha.ErrCaptchaNotFound):
			log.Warnw("captcha expired or not found", "captcha_id", id)
			return ErrCaptchaExpired
		case errors.Is(err, captcha.ErrCaptchaMismatch):
			log.Warnw("captcha mismatch", "captcha_id", id)
			return ErrCaptchaInvalid
		default:
			log.Errorw("captcha verify failed", "error", err)
			return fmt.Errorf("captcha verify: %w", err)
		}
	}
	return nil
}

func (s *Service) scope(operation string) *zap.SugaredLogger {
	if s.logger == nil {
		s.logger = appLogger.Component("auth.service")
	}
	return s.logger.With("operation", operation)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
