package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"nflpicks/tracker/internal/apperr"
	"nflpicks/tracker/internal/client"
	"nflpicks/tracker/internal/models"

	"github.com/rs/zerolog/log"
)

// DefaultGitHubAPIURL is the public GitHub REST API root.
const DefaultGitHubAPIURL = "https://api.github.com"

// DefaultKeepBackups is how many backup files per category a gist keeps.
const DefaultKeepBackups = 24

const (
	gistFilePrefix      = "nfl-predictions-"
	gistTimestampLayout = "20060102T150405Z"
	gistDescription     = "NFL prediction tracker backup"
)

// GistFileName names the file a payload of category is saved under.
func GistFileName(category string, at time.Time) string {
	return fmt.Sprintf("%s%s-%s.json", gistFilePrefix, category, at.UTC().Format(gistTimestampLayout))
}

// GistProvider stores payloads as files of a private GitHub gist.
type GistProvider struct {
	api  *client.Client
	now  func() time.Time
	keep int

	mu     sync.RWMutex
	token  string
	gistID string
}

// NewGistProvider creates an unconfigured gist provider.
func NewGistProvider(opts ProviderOptions) *GistProvider {
	baseURL := opts.GitHubAPIURL
	if baseURL == "" {
		baseURL = DefaultGitHubAPIURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	keep := opts.KeepBackups
	if keep <= 0 {
		keep = DefaultKeepBackups
	}
	return &GistProvider{
		api: client.New(strings.TrimRight(baseURL, "/"), timeout,
			client.WithHeader("Accept", "application/vnd.github+json"),
			client.WithHeader("X-GitHub-Api-Version", "2022-11-28"),
			client.WithRetry(2, 250*time.Millisecond),
		),
		now:  now,
		keep: keep,
	}
}

func (p *GistProvider) Kind() ProviderKind { return ProviderGist }

type gistFile struct {
	Filename  string  `json:"filename,omitempty"`
	Content   *string `json:"content,omitempty"`
	RawURL    string  `json:"raw_url,omitempty"`
	Truncated bool    `json:"truncated,omitempty"`
}

type gistDoc struct {
	ID          string              `json:"id,omitempty"`
	Description string              `json:"description,omitempty"`
	Public      *bool               `json:"public,omitempty"`
	Files       map[string]gistFile `json:"files"`
}

// gistPatch is an update body; a nil file deletes it.
type gistPatch struct {
	Files map[string]*gistFile `json:"files"`
}

// Configure validates the token against /user and provisions a private gist
// when no gist id is given.
func (p *GistProvider) Configure(ctx context.Context, creds Credentials) (Identity, error) {
	token := strings.TrimSpace(creds.Token)
	if token == "" {
		return Identity{}, &apperr.ConfigurationError{Field: "token", Reason: "a GitHub token is required"}
	}

	resp, err := p.call(ctx, token, client.Request{Endpoint: "github_user", Path: "user"})
	if err != nil {
		return Identity{}, err
	}
	var user struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return Identity{}, &apperr.DataFormatError{Source: "github user", Err: err}
	}

	gistID := strings.TrimSpace(creds.RemoteHandle)
	if gistID == "" {
		gistID, err = p.provision(ctx, token)
		if err != nil {
			return Identity{}, err
		}
		log.Info().Str("gist_id", gistID).Str("account", user.Login).Msg("Provisioned backup gist")
	} else if _, err := p.fetchGist(ctx, token, gistID); err != nil {
		return Identity{}, err
	}

	p.mu.Lock()
	p.token = token
	p.gistID = gistID
	p.mu.Unlock()

	return Identity{Account: user.Login, RemoteHandle: gistID}, nil
}

func (p *GistProvider) provision(ctx context.Context, token string) (string, error) {
	public := false
	readme := "Backups written by the NFL prediction tracker."
	body, err := json.Marshal(gistDoc{
		Description: gistDescription,
		Public:      &public,
		Files:       map[string]gistFile{"README.md": {Content: &readme}},
	})
	if err != nil {
		return "", err
	}

	resp, err := p.call(ctx, token, client.Request{
		Endpoint: "github_gist_create",
		Method:   http.MethodPost,
		Path:     "gists",
		Body:     body,
	})
	if err != nil {
		return "", err
	}
	var created gistDoc
	if err := json.Unmarshal(resp.Body, &created); err != nil || created.ID == "" {
		return "", &apperr.DataFormatError{Source: "github gist create", Err: err}
	}
	return created.ID, nil
}

// Save writes payload to a new timestamped file in the gist and deletes the
// oldest files of category beyond the retention limit in the same update.
func (p *GistProvider) Save(ctx context.Context, payload models.Payload, category string) error {
	token, gistID, err := p.credentials()
	if err != nil {
		return err
	}

	doc, err := p.fetchGist(ctx, token, gistID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	content := string(data)
	name := GistFileName(category, p.now())

	files := map[string]*gistFile{name: {Content: &content}}
	pruned := p.expired(categoryFiles(doc, category), name)
	for _, old := range pruned {
		files[old] = nil
	}
	body, err := json.Marshal(gistPatch{Files: files})
	if err != nil {
		return err
	}

	_, err = p.call(ctx, token, client.Request{
		Endpoint:   "github_gist_update",
		Method:     http.MethodPatch,
		Path:       "gists/" + gistID,
		Body:       body,
		Idempotent: true,
	})
	if err != nil {
		return err
	}
	log.Debug().Str("gist_id", gistID).Str("file", name).Int("pruned", len(pruned)).Msg("Saved payload to gist")
	return nil
}

// expired returns the files to delete so that, with name added, at most
// p.keep remain. existing must be sorted.
func (p *GistProvider) expired(existing []string, name string) []string {
	var others []string
	for _, n := range existing {
		if n != name {
			others = append(others, n)
		}
	}
	excess := len(others) + 1 - p.keep
	if excess <= 0 {
		return nil
	}
	return others[:excess]
}

// categoryFiles lists the backup files of category, oldest first.
func categoryFiles(doc *gistDoc, category string) []string {
	prefix := gistFilePrefix + category + "-"
	var names []string
	for name := range doc.Files {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Load returns the payload in the lexicographically-last file for category.
func (p *GistProvider) Load(ctx context.Context, category string) (*models.Payload, error) {
	token, gistID, err := p.credentials()
	if err != nil {
		return nil, err
	}

	doc, err := p.fetchGist(ctx, token, gistID)
	if err != nil {
		return nil, err
	}

	names := categoryFiles(doc, category)
	if len(names) == 0 {
		return nil, nil
	}
	latest := names[len(names)-1]
	file := doc.Files[latest]

	var raw []byte
	if file.Truncated || file.Content == nil {
		resp, err := p.call(ctx, token, client.Request{Endpoint: "github_gist_raw", URL: file.RawURL})
		if err != nil {
			return nil, err
		}
		raw = resp.Body
	} else {
		raw = []byte(*file.Content)
	}

	var payload models.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &apperr.DataFormatError{Source: "gist file " + latest, Err: err}
	}
	return &payload, nil
}

func (p *GistProvider) fetchGist(ctx context.Context, token, gistID string) (*gistDoc, error) {
	resp, err := p.call(ctx, token, client.Request{Endpoint: "github_gist_get", Path: "gists/" + gistID})
	if err != nil {
		return nil, err
	}
	var doc gistDoc
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, &apperr.DataFormatError{Source: "github gist", Err: err}
	}
	return &doc, nil
}

func (p *GistProvider) credentials() (string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" || p.gistID == "" {
		return "", "", &apperr.ConfigurationError{Field: "gist", Reason: "provider is not configured"}
	}
	return p.token, p.gistID, nil
}

// call performs an authenticated request and maps auth and missing-gist
// statuses to configuration errors.
func (p *GistProvider) call(ctx context.Context, token string, req client.Request) (*client.Response, error) {
	req.Header = map[string]string{"Authorization": "Bearer " + token}
	resp, err := p.api.Do(ctx, req)
	if err == nil {
		return resp, nil
	}
	if nErr, ok := apperr.AsNetworkError(err); ok {
		switch nErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &apperr.ConfigurationError{Field: "token", Reason: "GitHub rejected the token", Err: err}
		case http.StatusNotFound:
			return nil, &apperr.ConfigurationError{Field: "gist", Reason: "gist not found", Err: err}
		}
	}
	return nil, err
}
