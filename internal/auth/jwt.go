package auth

import (
	"net/http"
	"time"

	"shiplink/internal/models"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// Claims is the JWT payload issued at login. Role travels with the token so
// handlers can gate carrier/sender actions without a user lookup.
type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the given user.
func GenerateToken(secret string, user *models.User, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Middleware validates the Authorization header and exposes the caller as
// "userID"/"userRole" in the echo context, which is what the handlers read.
func Middleware(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		SuccessHandler: func(c echo.Context) {
			token := c.Get("user").(*jwt.Token)
			claims := token.Claims.(*Claims)
			c.Set("userID", claims.UserID)
			c.Set("userRole", claims.Role)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: "missing or invalid token"})
		},
	})
}

// RequireRole rejects callers whose token carries a different role.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r, _ := c.Get("userRole").(string); r != role {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "insufficient role"})
			}
			return next(c)
		}
	}
}
