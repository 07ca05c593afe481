package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fitcenter-checkout/internal/infra/logging"
)

// ===== Purchaser session/JWT primitives =====

const issuer = "fitcenter-checkout"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type PurchaserClaims struct {
	jwt.RegisteredClaims
}

// Mint issues a guest session. An empty purchaserID gets a fresh one.
func (a *AuthManager) Mint(purchaserID string) (token, pid string, err error) {
	if purchaserID == "" {
		purchaserID = uuid.NewString()
	}
	now := a.now()
	claims := PurchaserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   purchaserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", "", err
	}
	return signed, purchaserID, nil
}

// ParseFromRequest reads "Authorization: Bearer <jwt>".
func (a *AuthManager) ParseFromRequest(r *http.Request) (*PurchaserClaims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, ErrMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (*PurchaserClaims, error) {
	claims := &PurchaserClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type purchaserKey struct{}

// PurchaserID returns the authenticated purchaser, or "".
func PurchaserID(ctx context.Context) string {
	v, _ := ctx.Value(purchaserKey{}).(string)
	return v
}

func WithPurchaser(ctx context.Context, purchaserID string) context.Context {
	ctx = logging.WithPurchaserID(ctx, purchaserID)
	return context.WithValue(ctx, purchaserKey{}, purchaserID)
}

// RequirePurchaser rejects requests without a valid purchaser token.
func RequirePurchaser(a *AuthManager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ParseFromRequest(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="checkout"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + err.Error() + `"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPurchaser(r.Context(), claims.Subject)))
		})
	}
}
