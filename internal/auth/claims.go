package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims は認証サービスが発行するアクセストークンのクレーム。
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ClaimsParser はアクセストークンからクレームを取り出す。
// シークレットが設定されている場合のみHS256署名を検証する。
// 有効期限の判定はSessionReaderが行うため、ここではクレーム検証をしない。
type ClaimsParser struct {
	secret []byte
	parser *jwt.Parser
}

// NewClaimsParser はClaimsParserを生成する。
func NewClaimsParser(secret string) *ClaimsParser {
	p := &ClaimsParser{
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

// Verifying は署名を検証する設定かどうかを返す。
func (p *ClaimsParser) Verifying() bool {
	return p.secret != nil
}

// Parse はトークンを解析してクレームを返す。
func (p *ClaimsParser) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	claims := &Claims{}
	if p.secret == nil {
		if _, _, err := p.parser.ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("failed to parse access token: %w", err)
		}
	} else {
		_, err := p.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return p.secret, nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to verify access token: %w", err)
		}
	}

	if claims.Subject == "" {
		return nil, errors.New("access token has no subject")
	}
	return claims, nil
}

// ExpiresAtTime はexpクレームの時刻を返す。expが無い場合はゼロ値。
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
