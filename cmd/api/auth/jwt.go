package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleVisitor = "visitor"
	RoleMember  = "member"
)

// Visitor 는 토큰에서 꺼낸 방문자 정보다. 토큰이 없으면 익명 방문자로 취급한다.
type Visitor struct {
	ID            string
	Role          string
	Authenticated bool
}

type visitorClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager 는 HS256 단일 시크릿 문자열을 사용해 방문자 JWT 를 발급/검증한다.
type JWTManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewJWTManagerFromEnv 는 환경변수에서 시크릿/issuer 를 읽어 JWTManager 를 생성한다.
//
// - JWT_SECRET: HS256 서명에 사용할 시크릿 문자열(필수)
// - JWT_ISSUER: iss 클레임 값(선택, 기본값 "toolhub")
func NewJWTManagerFromEnv() (*JWTManager, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "toolhub"
	}
	return NewJWTManager(secret, issuer, 24*time.Hour), nil
}

func NewJWTManager(secret, issuer string, ttl time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

func (m *JWTManager) Sign(visitorID, role string) (string, error) {
	now := time.Now()
	claims := visitorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   visitorID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse 는 서명, 만료, issuer 를 검증하고 방문자 정보를 돌려준다.
func (m *JWTManager) Parse(tokenString string) (Visitor, error) {
	var claims visitorClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Visitor{}, err
	}
	if claims.Subject == "" {
		return Visitor{}, errors.New("token missing sub claim")
	}
	role := claims.Role
	if role == "" {
		role = RoleVisitor
	}
	return Visitor{ID: claims.Subject, Role: role, Authenticated: true}, nil
}
