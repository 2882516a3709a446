package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/costscope/costscope/internal/domain"
	"github.com/costscope/costscope/internal/domain/principal"
)

func testDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writePrincipalsFile(t *testing.T, tokens map[string]string, body string) string {
	t.Helper()
	content := body
	for name, token := range tokens {
		hash, err := HashToken(token)
		if err != nil {
			t.Fatalf("hash token: %v", err)
		}
		content = strings.ReplaceAll(content, "{"+name+"}", hash)
	}
	path := filepath.Join(t.TempDir(), "principals.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write principals file: %v", err)
	}
	return path
}

const testPrincipalsYAML = `principals:
  - id: fin-bot
    name: Finance Bot
    token_hash: "{viewer}"
    organizations: [10]
    roles: [viewer]
  - id: ops-bot
    name: Ops Bot
    token_hash: "{editor}"
    organizations: [10, 20]
    roles: [viewer, editor]
`

func newTestAccess(t *testing.T, log *slog.Logger) *AccessService {
	t.Helper()
	path := writePrincipalsFile(t, map[string]string{
		"viewer": "viewer-token",
		"editor": "editor-token",
	}, testPrincipalsYAML)
	svc, err := NewAccessService(true, path, log)
	if err != nil {
		t.Fatalf("load access service: %v", err)
	}
	return svc
}

func TestAuthenticateResolvesPrincipal(t *testing.T) {
	svc := newTestAccess(t, testDiscardLogger())

	p, err := svc.Authenticate("viewer-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "fin-bot" || p.Name != "Finance Bot" {
		t.Fatalf("principal = %+v", p)
	}
	if len(p.Organizations) != 1 || p.Organizations[0] != 10 {
		t.Fatalf("organizations = %v", p.Organizations)
	}
}

func TestAuthenticateRejectsUnknownToken(t *testing.T) {
	svc := newTestAccess(t, testDiscardLogger())

	tests := []string{"", "wrong-token", "viewer-token2"}
	for _, token := range tests {
		_, err := svc.Authenticate(token)
		var aerr *domain.AuthenticationError
		if !errors.As(err, &aerr) {
			t.Fatalf("token %q: expected AuthenticationError, got %v", token, err)
		}
	}
}

func TestAuthenticateDisabledActsAsLocalAdmin(t *testing.T) {
	svc, err := NewAccessService(false, "", testDiscardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := svc.Authenticate("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.HasRole(principal.RoleEditor) || !p.HasRole(principal.RoleViewer) {
		t.Fatalf("expected admin to satisfy all roles, got %v", p.Roles)
	}
	if err := svc.Authorize(p, 999, principal.RoleEditor); err != nil {
		t.Fatalf("expected authorization to pass when disabled: %v", err)
	}
}

func TestAuthorizeDeniesForeignOrganization(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := newTestAccess(t, log)

	p, err := svc.Authenticate("viewer-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = svc.Authorize(p, 20, principal.RoleViewer)
	var derr *domain.AuthorizationError
	if !errors.As(err, &derr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if derr.PrincipalID != "fin-bot" || derr.OrganizationID != 20 {
		t.Fatalf("denial = %+v", derr)
	}

	logged := buf.String()
	if !strings.Contains(logged, "organization access denied") {
		t.Fatalf("expected security event log, got %q", logged)
	}
	if !strings.Contains(logged, `"attempted_org":20`) || !strings.Contains(logged, "fin-bot") {
		t.Fatalf("security event missing context: %q", logged)
	}
}

func TestAuthorizeDeniesMissingOrganization(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := newTestAccess(t, log)

	p, err := svc.Authenticate("editor-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A zero org id is never in an allow-list; the check fails closed.
	err = svc.Authorize(p, 0, principal.RoleEditor)
	var derr *domain.AuthorizationError
	if !errors.As(err, &derr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if !strings.Contains(buf.String(), "organization access denied") {
		t.Fatalf("expected security event log, got %q", buf.String())
	}
}

func TestAuthorizeDeniesInsufficientRole(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := newTestAccess(t, log)

	p, err := svc.Authenticate("viewer-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = svc.Authorize(p, 10, principal.RoleEditor)
	var derr *domain.AuthorizationError
	if !errors.As(err, &derr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if !strings.Contains(buf.String(), "insufficient role") {
		t.Fatalf("expected security event log, got %q", buf.String())
	}
}

func TestAuthorizeAllowsEditorInOwnOrg(t *testing.T) {
	svc := newTestAccess(t, testDiscardLogger())

	p, err := svc.Authenticate("editor-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, org := range []int64{10, 20} {
		if err := svc.Authorize(p, org, principal.RoleEditor); err != nil {
			t.Fatalf("org %d: unexpected denial: %v", org, err)
		}
	}
}

func TestNewAccessServiceValidatesFile(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing token hash",
			yaml: "principals:\n  - id: x\n    roles: [viewer]\n",
		},
		{
			name: "invalid role",
			yaml: "principals:\n  - id: x\n    token_hash: h\n    roles: [superuser]\n",
		},
		{
			name: "malformed yaml",
			yaml: "principals: [\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "principals.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatalf("write file: %v", err)
			}
			if _, err := NewAccessService(true, path, testDiscardLogger()); err == nil {
				t.Fatal("expected load error")
			}
		})
	}
}

func TestNewAccessServiceMissingFile(t *testing.T) {
	if _, err := NewAccessService(true, filepath.Join(t.TempDir(), "absent.yaml"), testDiscardLogger()); err == nil {
		t.Fatal("expected error for missing principals file")
	}
}

func TestHashTokenRoundTrip(t *testing.T) {
	hash, err := HashToken("secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "secret" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("unexpected hash %q", hash)
	}

	path := writePrincipalsFile(t, nil, fmt.Sprintf(
		"principals:\n  - id: x\n    token_hash: %q\n    roles: [viewer]\n", hash))
	svc, err := NewAccessService(true, path, testDiscardLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := svc.Authenticate("secret"); err != nil {
		t.Fatalf("expected hash to authenticate: %v", err)
	}
}
