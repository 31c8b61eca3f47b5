// Package spotify pauses and resumes playback on the user's active Spotify
// device through the Web API.
package spotify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
	"golang.org/x/oauth2"
)

const httpTimeout = 10 * time.Second

// ErrNoToken means no authorization was stored yet.
var ErrNoToken = errors.New("no Spotify token stored (run with --spotify-login)")

var endpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

var scopes = []string{"user-read-playback-state", "user-modify-playback-state"}

func oauthConfig(cfg types.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a client from the stored token. Refreshed tokens are written
// back to tokenPath.
func New(ctx context.Context, cfg types.SpotifyConfig, tokenPath string) (*Client, error) {
	token, err := loadToken(tokenPath)
	if err != nil {
		return nil, err
	}

	baseClient := &http.Client{Timeout: httpTimeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, baseClient)

	source := &savingSource{
		base: oauthConfig(cfg).TokenSource(ctx, token),
		path: tokenPath,
		last: token.AccessToken,
	}
	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source))
	httpClient.Timeout = httpTimeout

	return NewWithHTTPClient(httpClient, cfg.APIBaseURL), nil
}

// NewWithHTTPClient uses an already authorized client.
func NewWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.spotify.com"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Pause stops playback. Spotify answers 403 when nothing is playing.
func (c *Client) Pause(ctx context.Context) error {
	return c.put(ctx, "/v1/me/player/pause")
}

// Resume restarts playback. Spotify answers 403 when already playing.
func (c *Client) Resume(ctx context.Context) error {
	return c.put(ctx, "/v1/me/player/play")
}

func (c *Client) put(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", strings.TrimSpace(string(body)), types.ErrAlreadyInState)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("spotify returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Authorize runs the authorization code flow on a terminal: it prints the
// consent URL, reads back the redirected URL and stores the token.
func Authorize(ctx context.Context, cfg types.SpotifyConfig, tokenPath string, in io.Reader, out io.Writer) error {
	conf := oauthConfig(cfg)
	state := fmt.Sprintf("decibender-%d", time.Now().UnixNano())

	fmt.Fprintf(out, "Open this URL in your browser and authorize access:\n\n%s\n\n", conf.AuthCodeURL(state))
	fmt.Fprint(out, "Paste the URL you were redirected to: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read redirect URL: %w", err)
	}

	code, err := codeFromRedirect(strings.TrimSpace(line), state)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: httpTimeout})
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if err := saveToken(tokenPath, token); err != nil {
		return err
	}
	fmt.Fprintln(out, "Spotify authorized.")
	return nil
}

func codeFromRedirect(raw, state string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	if q.Get("state") != state {
		return "", errors.New("authorization state mismatch")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code")
	}
	return code, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return &token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// savingSource persists every newly refreshed token.
type savingSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := saveToken(s.path, token); err != nil {
			logger.Warnf("Failed to persist refreshed Spotify token: %v", err)
		}
	}
	return token, nil
}
