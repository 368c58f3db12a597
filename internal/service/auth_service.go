// Package service 实现目录服务的业务逻辑：鉴权、版本摄取、更新解析与同步。
package service

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "UpdateAegis"

// AuthConfig 是管理员鉴权配置
type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminUsername string
	AdminPassword string // 明文或 bcrypt 哈希
}

// Claim 定义 JWT 的载荷结构
type Claim struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// ErrInvalidToken 表示 JWT 无效、过期或解析失败。
var ErrInvalidToken = fmt.Errorf("%w: invalid or expired token", port.ErrUnauthorized)

// PrincipalKind 区分两类互不通用的凭证
type PrincipalKind int

const (
	PrincipalAnonymous PrincipalKind = iota
	PrincipalAdmin
	PrincipalSite
)

// Principal 是一次请求解析出的调用方身份
type Principal struct {
	Kind  PrincipalKind
	Claim *Claim
	Site  *domain.AuthorizedSite
}

// IsAdmin 报告调用方是否持有管理员令牌
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Kind == PrincipalAdmin && p.Claim != nil && p.Claim.IsAdmin
}

// ScopePluginID 返回站点授权限定的插件，nil 表示不限定
func (p *Principal) ScopePluginID() *int64 {
	if p == nil || p.Kind != PrincipalSite || p.Site == nil {
		return nil
	}
	return p.Site.PluginID
}

// Authenticator 负责管理员登录、JWT 签发校验以及 Bearer 凭证解析
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	sites  port.SiteStore
	now    func() time.Time
}

// NewAuthenticator 创建 Authenticator 实例
func NewAuthenticator(cfg AuthConfig, sites port.SiteStore) (*Authenticator, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret 不能为空")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		slog.Warn("未配置管理员账号，管理员登录将始终失败")
	}
	return &Authenticator{cfg: cfg, secret: []byte(cfg.JWTSecret), sites: sites, now: time.Now}, nil
}

// SetClock 替换时间源，仅用于测试
func (a *Authenticator) SetClock(now func() time.Time) { a.now = now }

// Login 校验管理员账号，成功返回令牌及过期时间。失败时不区分是用户名还是密码错误。
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	if a.cfg.AdminUsername == "" || a.cfg.AdminPassword == "" {
		return "", time.Time{}, fmt.Errorf("%w: 用户名或密码无效", port.ErrUnauthorized)
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.AdminUsername)) == 1
	passOK := checkPassword(a.cfg.AdminPassword, password)
	if !userOK || !passOK {
		return "", time.Time{}, fmt.Errorf("%w: 用户名或密码无效", port.ErrUnauthorized)
	}
	return a.GenToken(username, true)
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func checkPassword(stored, given string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

// HashPassword 生成 bcrypt 哈希，用于写入配置文件
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: 密码不能为空", port.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("生成密码哈希失败: %w", err)
	}
	return string(hash), nil
}

// GenToken 生成一个新的 JWT
func (a *Authenticator) GenToken(username string, isAdmin bool) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.cfg.TokenTTL)
	claims := Claim{
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("签名 JWT 失败: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken 解析并验证 JWT 字符串
func (a *Authenticator) ParseToken(tokenString string) (*Claim, error) {
	claims := &Claim{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w (expired)", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w (detail: %v)", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ResolveBearer 先按站点授权表精确查找，命中则刷新 last_check；未命中再按管理员 JWT 校验。
// 两类凭证靠查表区分，而不是靠令牌格式。
func (a *Authenticator) ResolveBearer(ctx context.Context, token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: 缺少凭证", port.ErrUnauthorized)
	}
	if a.sites != nil {
		site, err := a.sites.TouchSiteByKey(ctx, token, a.now())
		if err != nil {
			return nil, err
		}
		if site != nil {
			return &Principal{Kind: PrincipalSite, Site: site}, nil
		}
	}
	claims, err := a.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return &Principal{Kind: PrincipalAdmin, Claim: claims}, nil
}

/* ---------- Context Helpers ---------- */

type ctxKey int

const principalKey ctxKey = 0

// ContextWithPrincipal 把调用方身份放入 context
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom 取出调用方身份，没有时返回 nil
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
