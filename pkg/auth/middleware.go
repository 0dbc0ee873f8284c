package auth

import (
	"encoding/json"
	"strings"

	xhttp "github.com/retailpoint/pos-gateway/pkg/http"
)

const claimsKey = "auth_claims"

// RequireRole returns middleware that rejects requests without a valid
// bearer token carrying the given role. An empty role accepts any valid
// token.
func RequireRole(v *Verifier, role string) func(next xhttp.RequestHandler) xhttp.RequestHandler {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		return func(ctx *xhttp.RequestCtx) {
			header := string(ctx.Request.Header.Peek("Authorization"))
			if header == "" {
				unauthorized(ctx, ErrMissingToken.Error())
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				unauthorized(ctx, "invalid authorization format, use: Bearer <token>")
				return
			}

			claims, err := v.ValidateToken(parts[1])
			if err != nil {
				unauthorized(ctx, err.Error())
				return
			}

			if role != "" && claims.Role != role {
				forbidden(ctx)
				return
			}

			ctx.SetUserValue(claimsKey, claims)
			next(ctx)
		}
	}
}

// ClaimsFromCtx returns the verified claims set by RequireRole, or nil.
func ClaimsFromCtx(ctx *xhttp.RequestCtx) *Claims {
	if c, ok := ctx.UserValue(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

func unauthorized(ctx *xhttp.RequestCtx, msg string) {
	writeJSONError(ctx, xhttp.StatusUnauthorized, msg)
}

func forbidden(ctx *xhttp.RequestCtx) {
	writeJSONError(ctx, xhttp.StatusForbidden, "insufficient privileges")
}

func writeJSONError(ctx *xhttp.RequestCtx, status int, msg string) {
	b, _ := json.Marshal(map[string]string{"error": msg})
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}
