package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrAuthRequired means the user has no usable token and must redo the
// consent flow out of band.
var ErrAuthRequired = errors.New("authentication required")

// Credential is one user's stored OAuth grant.
type Credential struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	TokenURI     string    `json:"token_uri"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Scopes       []string  `json:"scopes"`
	Expiry       time.Time `json:"expiry"`
}

// Store is a file-backed map of user id to credential. Several processes
// read the same file; writes go through a temp file and atomic rename so
// a crash mid-write never corrupts it.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store over the given JSON file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the whole credential map. A short bounded retry covers the
// window where another process is mid-rename.
// Parameters:
//   - ctx: context for cancellation between retries.
// Returns:
//   - map[string]Credential: user id to credential; empty when the file is absent.
//   - error: non-nil if the file stays unreadable.
func (s *Store) Load(ctx context.Context) (map[string]Credential, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}

		data, err := os.ReadFile(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				return map[string]Credential{}, nil
			}
			lastErr = err
			continue
		}
		if len(data) == 0 {
			return map[string]Credential{}, nil
		}

		var creds map[string]Credential
		if err := json.Unmarshal(data, &creds); err != nil {
			lastErr = fmt.Errorf("failed to parse credential file: %w", err)
			continue
		}
		return creds, nil
	}
	return nil, lastErr
}

// SaveAll writes the whole credential map atomically and restricts the
// file to the owning user.
// Parameters:
//   - creds: full map to persist.
// Returns:
//   - error: non-nil if any step of the write fails.
func (s *Store) SaveAll(creds map[string]Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		return fmt.Errorf("failed to restrict credential file: %w", err)
	}
	return nil
}

// Refresh returns a valid token for the user, refreshing and persisting
// it when expired. A user without a refresh token gets ErrAuthRequired.
// Parameters:
//   - ctx: context for the token endpoint call.
//   - userID: user whose credential to refresh.
// Returns:
//   - *oauth2.Token: valid access token.
//   - error: ErrAuthRequired when re-consent is needed, other errors on failure.
func (s *Store) Refresh(ctx context.Context, userID string) (*oauth2.Token, error) {
	creds, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	cred, ok := creds[userID]
	if !ok || cred.Token == "" && cred.RefreshToken == "" {
		return nil, fmt.Errorf("user %s: %w", userID, ErrAuthRequired)
	}

	tok := &oauth2.Token{
		AccessToken:  cred.Token,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
	}
	if tok.Valid() {
		return tok, nil
	}
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("user %s: token expired without refresh token: %w", userID, ErrAuthRequired)
	}

	conf := s.oauthConfig(cred)
	fresh, err := conf.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token for user %s: %w", userID, err)
	}

	cred.Token = fresh.AccessToken
	cred.Expiry = fresh.Expiry
	if fresh.RefreshToken != "" {
		cred.RefreshToken = fresh.RefreshToken
	}
	creds[userID] = cred
	if err := s.SaveAll(creds); err != nil {
		return nil, err
	}
	return fresh, nil
}

// ClientFor returns an HTTP client that authenticates as the user and
// refreshes transparently for the duration of a pipeline run.
// Parameters:
//   - ctx: context bounding the client's requests.
//   - userID: user to authenticate as.
// Returns:
//   - *oauth2.Token source backed http client via oauth2.NewClient.
//   - error: ErrAuthRequired or refresh failure.
func (s *Store) ClientFor(ctx context.Context, userID string) (*oauth2.Config, *oauth2.Token, error) {
	creds, err := s.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	cred, ok := creds[userID]
	if !ok {
		return nil, nil, fmt.Errorf("user %s: %w", userID, ErrAuthRequired)
	}
	tok, err := s.Refresh(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return s.oauthConfig(cred), tok, nil
}

func (s *Store) oauthConfig(cred Credential) *oauth2.Config {
	endpoint := google.Endpoint
	if cred.TokenURI != "" {
		endpoint.TokenURL = cred.TokenURI
	}
	return &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Scopes:       cred.Scopes,
		Endpoint:     endpoint,
	}
}
