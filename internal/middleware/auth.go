package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type authCtxKey int

const bearerKey authCtxKey = 7

const tokenIssuer = "surveyd"

// SurveyClaims scope an admin token to a single survey.
type SurveyClaims struct {
	SurveyID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks HS256 survey admin tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// Sign issues a token that grants admin rights on surveyID until it expires.
func (t *TokenIssuer) Sign(surveyID string) (string, error) {
	now := t.now()
	claims := SurveyClaims{
		SurveyID: surveyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify returns the survey id the token was issued for.
func (t *TokenIssuer) Verify(tok string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tok, &SurveyClaims{},
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", err
	}
	c, ok := parsed.Claims.(*SurveyClaims)
	if !ok || !parsed.Valid || c.SurveyID == "" {
		return "", errors.New("invalid token")
	}
	return c.SurveyID, nil
}

// WithAuth stores a bearer token from the Authorization header in the
// request context. Tokens are checked later against the survey they target.
func WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			if tok = strings.TrimSpace(tok); tok != "" {
				r = r.WithContext(context.WithValue(r.Context(), bearerKey, tok))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// BearerFromContext returns the token stored by WithAuth, if any.
func BearerFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(bearerKey).(string)
	return tok
}
