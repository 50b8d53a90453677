// Package cloudsync backs predictions up to a remote provider and
// reconciles local and remote copies.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nflpicks/tracker/internal/models"
)

// ProviderKind selects a remote provider.
type ProviderKind string

const (
	ProviderGist     ProviderKind = "gist"
	ProviderFirebase ProviderKind = "firebase"
	ProviderSupabase ProviderKind = "supabase"
)

// ParseProviderKind validates a configured provider name.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch k := ProviderKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ProviderGist, ProviderFirebase, ProviderSupabase:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sync provider %q", s)
	}
}

// DefaultCategory names the payload category used for full backups.
const DefaultCategory = "all"

// ErrProviderNotImplemented is returned by placeholder providers.
var ErrProviderNotImplemented = errors.New("sync provider not implemented")

// Credentials configure a provider. RemoteHandle identifies an existing
// remote blob; when empty the provider provisions one.
type Credentials struct {
	Token        string `json:"token"`
	RemoteHandle string `json:"remoteHandle,omitempty"`
}

// Identity describes a configured remote.
type Identity struct {
	Account      string `json:"account"`
	RemoteHandle string `json:"remoteHandle"`
}

// Provider stores prediction payloads remotely.
type Provider interface {
	Kind() ProviderKind
	// Configure validates credentials, provisioning a remote blob when none
	// is given.
	Configure(ctx context.Context, creds Credentials) (Identity, error)
	Save(ctx context.Context, payload models.Payload, category string) error
	// Load returns the newest payload for category, or nil when none exists.
	Load(ctx context.Context, category string) (*models.Payload, error)
}

// ProviderOptions carry construction settings shared by providers.
type ProviderOptions struct {
	GitHubAPIURL string
	Timeout      time.Duration
	Now          func() time.Time
	// KeepBackups bounds the backup files kept per category.
	KeepBackups  int
}

// NewProvider instantiates the provider for kind.
func NewProvider(kind ProviderKind, opts ProviderOptions) (Provider, error) {
	switch kind {
	case ProviderGist:
		return NewGistProvider(opts), nil
	case ProviderFirebase:
		return placeholderProvider{kind: ProviderFirebase}, nil
	case ProviderSupabase:
		return placeholderProvider{kind: ProviderSupabase}, nil
	default:
		return nil, fmt.Errorf("unknown sync provider %q", kind)
	}
}

// placeholderProvider reserves a provider slot without an implementation.
type placeholderProvider struct {
	kind ProviderKind
}

func (p placeholderProvider) Kind() ProviderKind { return p.kind }

func (p placeholderProvider) Configure(context.Context, Credentials) (Identity, error) {
	return Identity{}, fmt.Errorf("%s: %w", p.kind, ErrProviderNotImplemented)
}

func (p placeholderProvider) Save(context.Context, models.Payload, string) error {
	return fmt.Errorf("%s: %w", p.kind, ErrProviderNotImplemented)
}

func (p placeholderProvider) Load(context.Context, string) (*models.Payload, error) {
	return nil, fmt.Errorf("%s: %w", p.kind, ErrProviderNotImplemented)
}
