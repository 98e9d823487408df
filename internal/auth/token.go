package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/bookshelf/internal/model"
)

// ErrInvalidToken はトークンの署名不一致・ペイロード不正・期限切れを表す。
// 失敗理由は呼び出し側に区別させない。
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims はセッショントークンのペイロード。
// SubjectにユーザーID、roleにロールを格納する。
type TokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenServiceConfig はトークンサービスの設定。
// Secretはプロセス全体で共有する署名鍵。起動時に注入し、以降変更しない。
// 鍵をローテーションすると発行済みトークンは全て無効になる。
type TokenServiceConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string

	// Now はテスト用に現在時刻をオーバーライドする。nilの場合time.Now。
	Now func() time.Time
}

// TokenService はHMAC-SHA256署名付きJWTの発行・検証を提供する。
// トークンは自己完結型でサーバー側に状態を持たない。
// 検証は署名と有効期限のみで判定する（失効リストは持たない）。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenService{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    now,
	}
}

// Issue はユーザーのセッショントークンを発行する。
// 同一ユーザーでも発行時刻が異なれば別のトークン文字列になる。
func (s *TokenService) Issue(user *model.User) (string, error) {
	issuedAt := s.now()

	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
		Role: string(user.Role),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return token, nil
}

// Verify はトークンを検証し、有効な場合はクレームを返す。
// 署名不一致・ペイロード不正・期限切れはいずれもErrInvalidTokenにまとめる。
func (s *TokenService) Verify(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims, nil
}
