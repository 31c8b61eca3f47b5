package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dooshek/decibender/internal/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func playerAPI(t *testing.T, status int) (*httptest.Server, *[]string) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path+" "+r.Header.Get("Authorization"))
		w.WriteHeader(status)
		if status == http.StatusForbidden {
			_, _ = w.Write([]byte(`{"error":{"status":403,"message":"Player command failed: Restriction violated"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestPauseResume(t *testing.T) {
	srv, calls := playerAPI(t, http.StatusNoContent)
	c := NewWithHTTPClient(srv.Client(), srv.URL+"/")

	require.NoError(t, c.Pause(context.Background()))
	require.NoError(t, c.Resume(context.Background()))
	require.Equal(t, []string{"PUT /v1/me/player/pause ", "PUT /v1/me/player/play "}, *calls)
}

func TestForbiddenIsAlreadyInState(t *testing.T) {
	srv, _ := playerAPI(t, http.StatusForbidden)
	c := NewWithHTTPClient(srv.Client(), srv.URL)

	err := c.Pause(context.Background())
	require.ErrorIs(t, err, types.ErrAlreadyInState)
	require.ErrorContains(t, err, "Restriction violated")
}

func TestOtherStatusIsError(t *testing.T) {
	srv, _ := playerAPI(t, http.StatusUnauthorized)
	c := NewWithHTTPClient(srv.Client(), srv.URL)

	err := c.Resume(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, types.ErrAlreadyInState))
}

func TestNewUsesStoredToken(t *testing.T) {
	srv, calls := playerAPI(t, http.StatusNoContent)
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, saveToken(tokenPath, &oauth2.Token{
		AccessToken: "access-1",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))

	c, err := New(context.Background(), types.SpotifyConfig{ClientID: "id", ClientSecret: "secret", APIBaseURL: srv.URL}, tokenPath)
	require.NoError(t, err)
	require.NoError(t, c.Pause(context.Background()))
	require.Equal(t, []string{"PUT /v1/me/player/pause Bearer access-1"}, *calls)
}

func TestNewWithoutToken(t *testing.T) {
	_, err := New(context.Background(), types.SpotifyConfig{ClientID: "id", ClientSecret: "secret"}, filepath.Join(t.TempDir(), "none.json"))
	require.ErrorIs(t, err, ErrNoToken)
}

type staticSource struct{ token *oauth2.Token }

func (s staticSource) Token() (*oauth2.Token, error) { return s.token, nil }

func TestSavingSourcePersistsRefresh(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	s := &savingSource{
		base: staticSource{token: &oauth2.Token{AccessToken: "access-2", Expiry: time.Now().Add(time.Hour)}},
		path: tokenPath,
		last: "access-1",
	}

	_, err := s.Token()
	require.NoError(t, err)

	stored, err := loadToken(tokenPath)
	require.NoError(t, err)
	require.Equal(t, "access-2", stored.AccessToken)
}

func TestCodeFromRedirect(t *testing.T) {
	code, err := codeFromRedirect("http://127.0.0.1:8888/callback?code=abc&state=s1", "s1")
	require.NoError(t, err)
	require.Equal(t, "abc", code)

	_, err = codeFromRedirect("http://127.0.0.1:8888/callback?code=abc&state=other", "s1")
	require.Error(t, err)

	_, err = codeFromRedirect("http://127.0.0.1:8888/callback?error=access_denied&state=s1", "s1")
	require.ErrorContains(t, err, "access_denied")

	_, err = codeFromRedirect("http://127.0.0.1:8888/callback?state=s1", "s1")
	require.Error(t, err)
}
