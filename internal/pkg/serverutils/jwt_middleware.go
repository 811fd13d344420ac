package serverutils

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Locals keys set by JwtMiddleware.
const (
	LocalUserID = "user_id"
	LocalOrgID  = "org_id"
)

func unauthorized(ctx *fiber.Ctx, message string) error {
	return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error: ErrorBody{Code: "UNAUTHORIZED", Message: message},
	})
}

// BearerToken reads the token from the Authorization header, falling back to
// the token query parameter used by browser websockets.
func BearerToken(ctx *fiber.Ctx) string {
	if h := ctx.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return h[7:]
	}
	return ctx.Query("token")
}

// ParseToken validates an HMAC signed token and returns its claims.
func ParseToken(tokenStr, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

func JwtMiddleware(ctx *fiber.Ctx) error {
	tokenStr := BearerToken(ctx)
	if tokenStr == "" {
		return unauthorized(ctx, "Missing token")
	}

	claims, err := ParseToken(tokenStr, os.Getenv("JWT_SECRET"))
	if err != nil {
		return unauthorized(ctx, "Invalid token")
	}

	orgID, _ := claims["org_id"].(string)
	if orgID == "" {
		return unauthorized(ctx, "Token missing org_id")
	}

	ctx.Locals(LocalUserID, claims["user_id"])
	ctx.Locals(LocalOrgID, orgID)
	return ctx.Next()
}

// OrgID returns the organization of the authenticated caller.
func OrgID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(LocalOrgID).(string)
	return id
}
