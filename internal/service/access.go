// Package service holds the business logic between the MCP adapter and the
// upstream port: caller access control and the analytics engine.
package service

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/costscope/costscope/internal/domain"
	"github.com/costscope/costscope/internal/domain/principal"
)

// AccessService resolves bearer credentials to principals and authorizes
// organization/role access. Authorization fails closed.
type AccessService struct {
	enabled    bool
	principals []storedPrincipal
	log        *slog.Logger
}

// storedPrincipal is one entry of the principals file. The credential is
// stored as a bcrypt hash; the raw token never lives on disk.
type storedPrincipal struct {
	ID            string           `yaml:"id"`
	Name          string           `yaml:"name"`
	TokenHash     string           `yaml:"token_hash"`
	Organizations []int64          `yaml:"organizations"`
	Roles         []principal.Role `yaml:"roles"`
}

type principalsFile struct {
	Principals []storedPrincipal `yaml:"principals"`
}

// NewAccessService loads the principals file. When enabled is false the
// service authenticates every caller as a local admin, mirroring a
// development setup with auth switched off.
func NewAccessService(enabled bool, principalsPath string, log *slog.Logger) (*AccessService, error) {
	svc := &AccessService{enabled: enabled, log: log}
	if !enabled {
		return svc, nil
	}

	data, err := os.ReadFile(principalsPath) //nolint:gosec // G304: path comes from config
	if err != nil {
		return nil, fmt.Errorf("read principals file: %w", err)
	}
	var f principalsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse principals file: %w", err)
	}
	for i, p := range f.Principals {
		if p.ID == "" || p.TokenHash == "" {
			return nil, fmt.Errorf("principals[%d]: id and token_hash are required", i)
		}
		for _, r := range p.Roles {
			if !principal.ValidRoles[r] {
				return nil, fmt.Errorf("principals[%d]: invalid role %q", i, r)
			}
		}
	}
	svc.principals = f.Principals
	return svc, nil
}

// Authenticate resolves a bearer token to a Principal.
func (s *AccessService) Authenticate(token string) (*principal.Principal, error) {
	if !s.enabled {
		return &principal.Principal{
			ID:    "local",
			Name:  "Local Admin",
			Roles: []principal.Role{principal.RoleAdmin},
		}, nil
	}

	if token == "" {
		return nil, &domain.AuthenticationError{Reason: "missing bearer token"}
	}

	for i := range s.principals {
		p := &s.principals[i]
		if bcrypt.CompareHashAndPassword([]byte(p.TokenHash), []byte(token)) == nil {
			return &principal.Principal{
				ID:            p.ID,
				Name:          p.Name,
				Organizations: p.Organizations,
				Roles:         p.Roles,
			}, nil
		}
	}
	return nil, &domain.AuthenticationError{Reason: "unknown credential"}
}

// Authorize checks that the principal may access orgID with the required
// role. The allow-list check always runs and fails closed: an absent or
// zero org id is never in any allow-list, so it is denied. Denials are
// logged as security events including the attempted org id and the
// principal's allowed set.
func (s *AccessService) Authorize(p *principal.Principal, orgID int64, required principal.Role) error {
	if !s.enabled {
		return nil
	}

	if !p.AllowsOrganization(orgID) {
		s.log.Warn("security event: organization access denied",
			"principal", p.ID,
			"attempted_org", orgID,
			"allowed_orgs", p.Organizations,
		)
		return &domain.AuthorizationError{
			PrincipalID:    p.ID,
			OrganizationID: orgID,
			RequiredRole:   string(required),
		}
	}

	if !p.HasRole(required) {
		s.log.Warn("security event: insufficient role",
			"principal", p.ID,
			"attempted_org", orgID,
			"required_role", required,
			"roles", p.Roles,
		)
		return &domain.AuthorizationError{
			PrincipalID:    p.ID,
			OrganizationID: orgID,
			RequiredRole:   string(required),
		}
	}

	return nil
}

// HashToken produces a bcrypt hash suitable for the principals file.
// Used by the credential helper in cmd.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(h), nil
}
