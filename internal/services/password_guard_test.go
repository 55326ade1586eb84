package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testGuard() *PasswordGuard {
	return NewPasswordGuard(bcrypt.MinCost, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func tamper(hash string) string {
	b := []byte(hash)
	i := len(b) - 10
	if b[i] == 'a' {
		b[i] = 'b'
	} else {
		b[i] = 'a'
	}
	return string(b)
}

func TestPasswordGuardHashVerify(t *testing.T) {
	g := testGuard()
	h1, err := g.Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := g.Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected per-call salt to produce different hashes")
	}
	if strings.Contains(h1, "s3cret") {
		t.Fatalf("hash contains plaintext")
	}

	tests := []struct {
		name  string
		plain string
		hash  string
		want  bool
	}{
		{"correct", "s3cret", h1, true},
		{"second hash", "s3cret", h2, true},
		{"wrong", "nope", h1, false},
		{"empty plaintext", "", h1, false},
		{"empty hash", "s3cret", "", false},
		{"malformed hash", "s3cret", "not-a-hash", false},
		{"tampered hash", "s3cret", tamper(h1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Verify(tt.plain, tt.hash); got != tt.want {
				t.Fatalf("Verify(%q) = %v, want %v", tt.plain, got, tt.want)
			}
		})
	}
}

func TestPasswordGuardHashRejectsBadInput(t *testing.T) {
	g := testGuard()
	if _, err := g.Hash(""); !IsCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid for empty password, got %v", err)
	}
	if _, err := g.Hash(strings.Repeat("x", 73)); !IsCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid for long password, got %v", err)
	}
}

func TestPasswordGuardAuthorize(t *testing.T) {
	g := testGuard()
	hash, _ := g.Hash("pw")
	override, _ := bcrypt.GenerateFromPassword([]byte("break-glass"), bcrypt.MinCost)
	var logs bytes.Buffer
	g.logger = slog.New(slog.NewTextHandler(&logs, nil))
	g.audit = NewAuditLog(g.logger)
	g.WithOverride(string(override)).WithTokenVerifier(func(tok string) (string, error) {
		if tok == "good-token" {
			return "S1", nil
		}
		return "", errors.New("bad token")
	})

	ctx := context.Background()
	tests := []struct {
		name  string
		cred  Credential
		want  Grant
		allow bool
	}{
		{"password", Credential{Password: "pw"}, GrantPassword, true},
		{"token", Credential{Token: "good-token"}, GrantToken, true},
		{"override", Credential{Password: "break-glass"}, GrantOverride, true},
		{"wrong password", Credential{Password: "other"}, "", false},
		{"bad token", Credential{Token: "forged"}, "", false},
		{"empty", Credential{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Authorize(ctx, "S1", hash, tt.cred)
			if tt.allow {
				if err != nil || got != tt.want {
					t.Fatalf("got (%q, %v), want %q", got, err, tt.want)
				}
				return
			}
			se, ok := AsServiceError(err)
			if !ok || se.Code != ErrorForbidden || se.Message != "invalid credentials" {
				t.Fatalf("expected forbidden invalid credentials, got %v", err)
			}
		})
	}

	if _, err := g.Authorize(ctx, "S2", hash, Credential{Token: "good-token"}); !IsCode(err, ErrorForbidden) {
		t.Fatalf("token scoped to another survey must not authorize, got %v", err)
	}
	if !strings.Contains(logs.String(), "action=override") {
		t.Fatalf("override use was not audited: %s", logs.String())
	}
	if strings.Contains(logs.String(), "break-glass") {
		t.Fatalf("plaintext leaked into logs")
	}
}

func TestPasswordGuardOverrideDisabledByDefault(t *testing.T) {
	g := testGuard()
	if g.OverrideEnabled() {
		t.Fatalf("override should be disabled without a configured hash")
	}
	hash, _ := g.Hash("pw")
	if _, err := g.Authorize(context.Background(), "S1", hash, Credential{Password: ""}); !IsCode(err, ErrorForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
