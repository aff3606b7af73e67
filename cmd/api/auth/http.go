package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"toolhub/internal/logger"
)

var (
	ErrMissingHeader = errors.New("missing_authorization_header")
	ErrInvalidFormat = errors.New("invalid_authorization_header")
	ErrEmptyToken    = errors.New("empty_token")
	ErrInvalidToken  = errors.New("invalid_token")
)

const visitorKey = "visitor"

// ExtractBearerToken extracts the Bearer token from the Authorization header.
func ExtractBearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidFormat
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// AbortWithUnauthorized aborts the request with 401 status and error JSON.
func AbortWithUnauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
}

// OptionalVisitor 는 Authorization 헤더가 선택인 엔드포인트에서 사용한다.
// - 헤더가 없으면 익명 방문자로 통과시킨다.
// - 헤더가 있으나 형식이 틀리거나 토큰이 유효하지 않으면 401 로 중단한다.
// manager 가 nil 이면 (JWT_SECRET 미설정) 토큰이 있는 요청도 401 로 중단한다.
func OptionalVisitor(manager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractBearerToken(c)
		if errors.Is(err, ErrMissingHeader) {
			c.Set(visitorKey, Visitor{Role: RoleVisitor})
			c.Next()
			return
		}
		if err != nil {
			AbortWithUnauthorized(c, err)
			return
		}
		if manager == nil {
			AbortWithUnauthorized(c, ErrInvalidToken)
			return
		}

		visitor, err := manager.Parse(token)
		if err != nil {
			logger.WarnWithFields("visitor token rejected", logger.Fields{"error": err.Error()})
			AbortWithUnauthorized(c, ErrInvalidToken)
			return
		}
		c.Set(visitorKey, visitor)
		c.Next()
	}
}

// VisitorFrom returns the visitor set by OptionalVisitor, anonymous otherwise.
func VisitorFrom(c *gin.Context) Visitor {
	if v, ok := c.Get(visitorKey); ok {
		if visitor, ok := v.(Visitor); ok {
			return visitor
		}
	}
	return Visitor{Role: RoleVisitor}
}
