package middleware

import (
	"net/url"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	adapter "github.com/gwatts/gin-adapter"
)

// AuthIDKey is the gin context key holding the authenticated subject.
const AuthIDKey = "auth0_id"

// Auth returns gin middleware validating Auth0-issued JWTs and storing the
// subject claim under AuthIDKey.
func Auth(domain, audience string) ([]gin.HandlerFunc, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
	)
	if err != nil {
		return nil, err
	}

	mw := jwtmiddleware.New(jwtValidator.ValidateToken)

	extractSubject := func(c *gin.Context) {
		claims, ok := c.Request.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
		if ok {
			c.Set(AuthIDKey, claims.RegisteredClaims.Subject)
		}
		c.Next()
	}

	return []gin.HandlerFunc{adapter.Wrap(mw.CheckJWT), extractSubject}, nil
}

// GetAuth0ID extracts the authenticated user ID from the Gin context.
func GetAuth0ID(c *gin.Context) (string, bool) {
	v, ok := c.Get(AuthIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
