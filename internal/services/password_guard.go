package services

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past this length, so longer secrets are refused.
const maxPasswordBytes = 72

// Credential is what a caller presents to unlock a survey's privileged
// operations: the survey password, an admin token issued by verify, or both.
type Credential struct {
	Password string
	Token    string
}

func (c Credential) Empty() bool { return c.Password == "" && c.Token == "" }

// Grant names the path that authorized a request.
type Grant string

const (
	GrantPassword Grant = "password"
	GrantToken    Grant = "token"
	GrantOverride Grant = "override"
)

// TokenVerifier validates an admin token and returns the survey id it is scoped to.
type TokenVerifier func(token string) (surveyID string, err error)

// PasswordGuard hashes and verifies survey passwords. Plaintext never leaves
// this type and is never logged.
type PasswordGuard struct {
	cost         int
	overrideHash string
	verifyToken  TokenVerifier
	audit        *AuditLog
	logger       *slog.Logger
}

func NewPasswordGuard(cost int, logger *slog.Logger) *PasswordGuard {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PasswordGuard{cost: cost, logger: logger, audit: NewAuditLog(logger)}
}

// WithOverride enables the break-glass override. hash is a bcrypt hash; an
// empty hash leaves the override disabled.
func (g *PasswordGuard) WithOverride(hash string) *PasswordGuard {
	g.overrideHash = hash
	return g
}

func (g *PasswordGuard) WithTokenVerifier(v TokenVerifier) *PasswordGuard {
	g.verifyToken = v
	return g
}

func (g *PasswordGuard) OverrideEnabled() bool { return g.overrideHash != "" }

// Hash returns a salted bcrypt hash of plaintext.
func (g *PasswordGuard) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", NewInvalidError("password is required", "password")
	}
	if len(plaintext) > maxPasswordBytes {
		return "", NewInvalidError("password is too long", "password")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), g.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compares plaintext with hash in constant time. Empty input and
// malformed hashes never verify.
func (g *PasswordGuard) Verify(plaintext, hash string) bool {
	if plaintext == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Authorize checks cred against the survey identified by surveyID whose
// stored hash is hash. Every failure is the same forbidden error so callers
// cannot tell which part of the credential was wrong.
func (g *PasswordGuard) Authorize(ctx context.Context, surveyID, hash string, cred Credential) (Grant, error) {
	if cred.Token != "" && g.verifyToken != nil {
		if sid, err := g.verifyToken(cred.Token); err == nil && sid == surveyID {
			return GrantToken, nil
		}
	}
	if cred.Password != "" {
		if g.Verify(cred.Password, hash) {
			return GrantPassword, nil
		}
		if g.OverrideEnabled() && g.Verify(cred.Password, g.overrideHash) {
			g.audit.Record(ctx, AuditEntry{Actor: "override", Action: "override", Target: surveyID})
			return GrantOverride, nil
		}
	}
	g.logger.DebugContext(ctx, "authorization rejected", "survey_id", surveyID)
	return "", NewForbiddenError(msgInvalidCredentials)
}
