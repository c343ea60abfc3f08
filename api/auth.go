package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
)

// Claims identify the caller. Sub is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and issues them for tooling.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueToken signs a token for userID acting in role.
func (a *Authenticator) IssueToken(userID generic.UserID, role booking.Role) (string, error) {
	now := a.now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates a token and returns the caller it names.
func (a *Authenticator) Parse(token string) (booking.Caller, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return booking.Caller{}, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return booking.Caller{}, errors.New("invalid token")
	}
	role := booking.Role(claims.Role)
	switch role {
	case booking.RoleLearner, booking.RoleTutor, booking.RoleAdmin:
	default:
		return booking.Caller{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return booking.Caller{UserID: generic.UserID(claims.Subject), Role: role}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token", nil)
			return
		}
		caller, err := a.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid token", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

type callerKey struct{}

func WithCaller(ctx context.Context, c booking.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the authenticated caller. Handlers behind Middleware
// always have one.
func CallerFrom(ctx context.Context) (booking.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(booking.Caller)
	return c, ok
}

// RequireRole lets only callers in one of roles through.
func RequireRole(roles ...booking.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, _ := CallerFrom(r.Context())
			for _, role := range roles {
				if caller.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			err := &generic.ForbiddenError{UserID: caller.UserID, Action: "access " + r.URL.Path}
			writeError(w, http.StatusForbidden, "forbidden", "Forbidden", err)
		})
	}
}
