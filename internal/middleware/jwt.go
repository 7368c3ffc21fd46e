package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"sitecraft/internal/common"
	"sitecraft/internal/services"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// TokenVerifier checks access tokens. HS256 tokens are ours; RS256/ES256
// tokens from an external issuer are accepted only when a JWKS URL is set.
type TokenVerifier struct {
	secret []byte
	jwks   *keyfunc.JWKS
}

func NewTokenVerifier(secret, jwksURL string) (*TokenVerifier, error) {
	v := &TokenVerifier{secret: []byte(secret)}
	if jwksURL == "" {
		return v, nil
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Printf("WARN: refresh JWKS from %s: %v", jwksURL, err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load JWKS: %w", err)
	}
	v.jwks = jwks
	return v, nil
}

// Close stops the JWKS refresh goroutine.
func (v *TokenVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func (v *TokenVerifier) keyFor(t *jwt.Token) (interface{}, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return v.secret, nil
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		if v.jwks == nil {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.jwks.Keyfunc(t)
	}
	return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
}

// Parse verifies the token and returns its claims.
func (v *TokenVerifier) Parse(raw string) (*jwt.Token, *services.TokenClaims, error) {
	claims := &services.TokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, v.keyFor,
		jwt.WithValidMethods([]string{"HS256", "RS256", "ES256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, nil, err
	}
	if !token.Valid {
		return nil, nil, fmt.Errorf("token not valid")
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
		if err := localTokenValidator.Validate(claims); err != nil {
			return nil, nil, err
		}
	}
	return token, claims, nil
}

// HS256 tokens share the signing secret with invitations, so they must be
// API access tokens from our own issuer.
var localTokenValidator = jwt.NewValidator(
	jwt.WithAudience(services.TokenAudience),
	jwt.WithIssuer(services.TokenIssuer),
	jwt.WithExpirationRequired(),
)

// Config returns the echojwt configuration for the protected route group.
// On success the user and tenant ids are stored on the request context.
func (v *TokenVerifier) Config() echojwt.Config {
	return echojwt.Config{
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			token, claims, err := v.Parse(auth)
			if err != nil {
				return nil, err
			}

			sub := claims.UserID
			if sub == "" {
				sub = claims.Subject
			}
			userID, err := uuid.Parse(sub)
			if err != nil {
				return nil, fmt.Errorf("invalid user_id in token")
			}
			tenantID, err := uuid.Parse(claims.TenantID)
			if err != nil {
				return nil, fmt.Errorf("invalid tenant_id in token")
			}

			ctx := common.WithIdentity(c.Request().Context(), userID, tenantID)
			c.SetRequest(c.Request().WithContext(ctx))
			return token, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	}
}

// JWTMiddleware is shorthand for echojwt.WithConfig(v.Config()).
func (v *TokenVerifier) JWTMiddleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(v.Config())
}
