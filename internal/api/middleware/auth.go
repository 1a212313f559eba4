// Package middleware provides HTTP middleware for the Gin router.
//
// Go Learning Note — Middleware Pattern (Gin):
// In Gin, middleware is any function with the signature `gin.HandlerFunc`, which
// is `func(*gin.Context)`. Middleware functions form a chain: each one runs,
// optionally calls c.Next() to pass control to the next handler, and can call
// c.Abort() to stop the chain. This is the "chain of responsibility" pattern.
//
// Middleware is applied using .Use() on a router or route group. Here it
// covers authentication, request ids and the per-request deadline.
package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crowdradar/internal/auth"
)

// CallerKey is the gin context key holding the authenticated auth.Caller.
//
// Go Learning Note — Context Values:
// Gin's c.Set/c.Get stores request-scoped values in the *gin.Context. This is
// similar to the standard library's context.WithValue(). Use constants as
// keys to avoid typos.
const CallerKey = "caller"

// Auth resolves the caller from an "Authorization: Bearer <token>" header
// using verifier. Requests without a valid token stop here with 401; no
// handler behind it runs.
//
// Go Learning Note — Returning Functions (Closures):
// Auth(verifier) returns a gin.HandlerFunc. The closure captures verifier, so
// the router decides once, at startup, how tokens are checked.
//
// Go Learning Note — c.Abort():
// c.Abort() prevents subsequent handlers in the chain from running. Without it,
// even after writing an error response, the next handler would still execute.
// Always pair error responses with c.Abort() in middleware.
func Auth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthenticated(c, "missing authorization header")
			return
		}

		// strings.SplitN splits into at most 2 parts, handling tokens with spaces.
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			unauthenticated(c, "invalid authorization format")
			return
		}

		caller, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			log.Printf("[AUTH] %s %s: %v", c.Request.Method, c.FullPath(), err)
			unauthenticated(c, "sign in to continue")
			return
		}

		c.Set(CallerKey, caller)
		c.Next()
	}
}

func unauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"code": "UNAUTHENTICATED", "message": message},
	})
}

// GetCaller returns the caller stored by Auth. Outside an Auth-protected
// route it returns the zero Caller, which every service rejects.
//
// Go Learning Note — Type Assertion:
// c.Get() returns (interface{}, bool). The two-value form `v, ok := x.(T)`
// returns ok=false instead of panicking when the value has another type.
func GetCaller(c *gin.Context) auth.Caller {
	v, exists := c.Get(CallerKey)
	if !exists {
		return auth.Caller{}
	}
	caller, _ := v.(auth.Caller)
	return caller
}
