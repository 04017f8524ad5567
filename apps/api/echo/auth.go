package echoapi

import (
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/seta/core"
)

var contextTokenKey = "userToken"

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the SETA platform; this server only verifies them.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// echoJWT verifies the bearer token of every request.
func echoJWT(conf *core.Config) echo.MiddlewareFunc {
	return middleware.JWTWithConfig(newJWTConfig(conf))
}

func NewClaims(conf *core.Config, actorID, username, email string, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   actorID,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: username,
		Email:    email,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, *jwt.Token, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, token, nil
		}
	}
	return Claims{}, nil, errUnauthorized
}

// getContextSession builds the acting operator's Session from the verified token.
// The raw token is forwarded to the remote API as credentials.
func getContextSession(ctx echo.Context) (core.Session, error) {
	claims, token, err := getContextClaims(ctx)
	if err != nil {
		return core.Session{}, err
	}
	return core.Session{
		ActorID:     strings.TrimSpace(claims.Subject),
		Username:    claims.Username,
		Email:       claims.Email,
		Credentials: token.Raw,
	}, nil
}
