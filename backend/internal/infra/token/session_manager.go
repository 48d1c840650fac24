/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:40:41
 * @FilePath: \prompt-vault\backend\internal\infra\token\session_manager.go
 * @LastEditTime: 2025-10-20 22:15:10
 */
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	domain "prompt-vault/backend/internal/domain/user"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	claimEmail   = "email"
	claimName    = "name"
	claimPicture = "picture"
	claimTokenID = "jti"

	defaultSessionTTL = 30 * 24 * time.Hour
)

var (
	// ErrInvalidToken 表示会话令牌缺失、签名错误或已过期。
	ErrInvalidToken = errors.New("invalid session token")
)

// SessionClaims 是会话令牌中携带的用户摘要。
type SessionClaims struct {
	UserID    string
	Email     string
	Name      string
	Picture   string
	TokenID   string
	ExpiresAt time.Time
}

// Identity 转换为请求上下文使用的用户摘要。
func (c SessionClaims) Identity() domain.Identity {
	return domain.Identity{ID: c.UserID, Email: c.Email, Name: c.Name, Image: c.Picture}
}

// SessionManager 基于对称密钥签发与校验 HS256 会话令牌。
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager 创建会话管理器，ttl<=0 时使用 30 天。
func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL 返回会话有效期，用于设置 Cookie 的 MaxAge。
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue 为用户签发会话令牌。
func (m *SessionManager) Issue(identity domain.Identity) (string, SessionClaims, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return "", SessionClaims{}, fmt.Errorf("issue session: empty subject")
	}

	expiresAt := m.now().Add(m.ttl)
	tokenID := uuid.NewString()

	// 标准字段 sub/exp/jti 之外附带 email/name/picture，鉴权时无需再查库。
	claims := jwt.MapClaims{
		"sub":        identity.ID,
		"exp":        expiresAt.Unix(),
		"iat":        m.now().Unix(),
		claimTokenID: tokenID,
		claimEmail:   identity.Email,
		claimName:    identity.Name,
		claimPicture: identity.Image,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", SessionClaims{}, fmt.Errorf("sign session: %w", err)
	}

	return signed, SessionClaims{
		UserID:    identity.ID,
		Email:     identity.Email,
		Name:      identity.Name,
		Picture:   identity.Image,
		TokenID:   tokenID,
		ExpiresAt: time.Unix(expiresAt.Unix(), 0),
	}, nil
}

// Parse 校验签名与有效期并返回会话声明。
func (m *SessionManager) Parse(raw string) (SessionClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return SessionClaims{}, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return SessionClaims{}, ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return SessionClaims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return SessionClaims{
		UserID:    subject,
		Email:     stringClaim(claims, claimEmail),
		Name:      stringClaim(claims, claimName),
		Picture:   stringClaim(claims, claimPicture),
		TokenID:   stringClaim(claims, claimTokenID),
		ExpiresAt: expiresAt,
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	value, _ := claims[key].(string)
	return value
}
