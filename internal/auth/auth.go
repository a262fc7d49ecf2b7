package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/safar/electronics-store/internal/config"
	"github.com/safar/electronics-store/internal/models"
)

const (
	SessionHeader = "X-Session-Token"

	maxSessionTokenLen = 64
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type Claims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
}

// Resolver turns a request into a Caller. Bearer tokens identify customers;
// everyone else is a guest keyed by a session token.
type Resolver struct {
	secret []byte
	issuer string
	ttl    time.Duration
	cookie string
}

func NewResolver(cfg config.AuthConfig) *Resolver {
	return &Resolver{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		cookie: cfg.SessionCookie,
	}
}

func (r *Resolver) IssueToken(customerID int64, role models.Role) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    r.issuer,
			Subject:   strconv.FormatInt(customerID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

func (r *Resolver) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return r.secret, nil
	}, jwt.WithIssuer(r.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Resolve identifies the caller. A request with neither a bearer token nor a
// session token gets a fresh session token, echoed back as a cookie and a
// response header so the client can keep its cart.
func (r *Resolver) Resolve(w http.ResponseWriter, req *http.Request) (models.Caller, error) {
	if header := req.Header.Get("Authorization"); header != "" {
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return models.Caller{}, ErrInvalidToken
		}

		claims, err := r.ParseToken(strings.TrimSpace(tokenString))
		if err != nil {
			return models.Caller{}, err
		}

		customerID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || customerID <= 0 {
			return models.Caller{}, ErrInvalidToken
		}

		role := claims.Role
		if role == "" {
			role = models.RoleCustomer
		}
		return models.Caller{Identity: models.CustomerIdentity(customerID), Role: role}, nil
	}

	token := r.sessionToken(req)
	if token == "" {
		token = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     r.cookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.Header().Set(SessionHeader, token)

	return models.Caller{Identity: models.GuestIdentity(token)}, nil
}

func (r *Resolver) sessionToken(req *http.Request) string {
	token := strings.TrimSpace(req.Header.Get(SessionHeader))
	if token == "" {
		if cookie, err := req.Cookie(r.cookie); err == nil {
			token = strings.TrimSpace(cookie.Value)
		}
	}
	if len(token) > maxSessionTokenLen {
		return ""
	}
	return token
}
