package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/cantera/papers-backend/internal/config"
	"github.com/cantera/papers-backend/internal/domain"
)

func newTestOAuth(endpoint oauth2.Endpoint, apiBaseURL string) *OAuthUsecase {
	return &OAuthUsecase{
		cfg: &config.GitHubConfig{
			ClientID:     "client_id",
			ClientSecret: "client_secret",
			Org:          "Cantera",
			Team:         "committers",
		},
		baseURL:    "https://papers.example.org",
		state:      "expected-state",
		endpoint:   endpoint,
		apiBaseURL: apiBaseURL,
	}
}

func TestBeginLogin(t *testing.T) {
	u := newTestOAuth(oauth2.Endpoint{
		AuthURL:  "https://github.com/login/oauth/authorize",
		TokenURL: "https://github.com/login/oauth/access_token",
	}, "https://api.github.com")

	redirectURL, err := u.BeginLogin(ScopeReadOrg, "approve")
	require.NoError(t, err)

	parsed, err := url.Parse(redirectURL)
	require.NoError(t, err)

	assert.Equal(t, "github.com", parsed.Host)
	assert.Equal(t, "/login/oauth/authorize", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "client_id", query.Get("client_id"))
	assert.Equal(t, "expected-state", query.Get("state"))
	assert.Equal(t, ScopeReadOrg, query.Get("scope"))
	assert.Equal(t, "https://papers.example.org/github_callback/approve", query.Get("redirect_uri"))
}

func TestBeginLoginNoScope(t *testing.T) {
	u := newTestOAuth(oauth2.Endpoint{AuthURL: "https://github.com/login/oauth/authorize"}, "")

	redirectURL, err := u.BeginLogin("", "submit")
	require.NoError(t, err)

	parsed, err := url.Parse(redirectURL)
	require.NoError(t, err)
	assert.Empty(t, parsed.Query().Get("scope"))
	assert.Contains(t, parsed.Query().Get("redirect_uri"), "/github_callback/submit")
}

func TestBeginLoginRejectsUnknownTarget(t *testing.T) {
	u := newTestOAuth(oauth2.Endpoint{}, "")

	for _, target := range []string{"", "evil", "https://evil.example", "logout"} {
		_, err := u.BeginLogin("", target)
		assert.ErrorIs(t, err, ErrInvalidReturnTarget, "target %q", target)
	}
}

func TestCompleteLoginRejectsBeforeNetwork(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
	}))
	defer srv.Close()

	u := newTestOAuth(oauth2.Endpoint{TokenURL: srv.URL + "/token"}, srv.URL)

	_, err := u.CompleteLogin(context.Background(), "", "expected-state", "submit")
	assert.ErrorIs(t, err, ErrMissingCode)

	_, err = u.CompleteLogin(context.Background(), "a-code", "wrong-state", "submit")
	assert.ErrorIs(t, err, ErrStateMismatch)

	_, err = u.CompleteLogin(context.Background(), "a-code", "", "submit")
	assert.ErrorIs(t, err, ErrStateMismatch)

	_, err = u.CompleteLogin(context.Background(), "a-code", "expected-state", "elsewhere")
	assert.ErrorIs(t, err, ErrInvalidReturnTarget)

	assert.Equal(t, int32(0), tokenCalls.Load(), "no request may reach the token endpoint")
}

// githubStub fakes the token endpoint, the profile endpoint, and the team
// membership endpoint.
func githubStub(t *testing.T, grantedScope string, membershipStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer","scope":"` + grantedScope + `"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), "gho_test")
		w.Write([]byte(`{"login":"alice","id":42,"name":"Alice Smith","email":"alice@example.com"}`))
	})
	mux.HandleFunc("/orgs/Cantera/teams/committers/memberships/alice", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(membershipStatus)
		w.Write([]byte(`{}`))
	})

	return httptest.NewServer(mux)
}

func TestCompleteLoginCommitter(t *testing.T) {
	srv := githubStub(t, "read:org", http.StatusOK)
	defer srv.Close()

	u := newTestOAuth(oauth2.Endpoint{TokenURL: srv.URL + "/login/oauth/access_token"}, srv.URL)

	actor, err := u.CompleteLogin(context.Background(), "a-code", "expected-state", "approve")
	require.NoError(t, err)

	assert.Equal(t, "alice", actor.Display)
	assert.Equal(t, int64(42), actor.GHID)
	assert.Equal(t, "Alice Smith", actor.GHName)
	assert.Equal(t, "alice@example.com", actor.GHEmail)
	require.NotNil(t, actor.Teams)
	assert.Equal(t, domain.TeamCommitters, *actor.Teams)
	assert.True(t, actor.IsCommitter())
}

func TestCompleteLoginNotAMember(t *testing.T) {
	srv := githubStub(t, "read:org", http.StatusNotFound)
	defer srv.Close()

	u := newTestOAuth(oauth2.Endpoint{TokenURL: srv.URL + "/login/oauth/access_token"}, srv.URL)

	actor, err := u.CompleteLogin(context.Background(), "a-code", "expected-state", "approve")
	require.NoError(t, err)

	require.NotNil(t, actor.Teams, "membership was checked")
	assert.Equal(t, "", *actor.Teams)
	assert.False(t, actor.IsCommitter())
}

func TestCompleteLoginScopeNotGranted(t *testing.T) {
	srv := githubStub(t, "", http.StatusOK)
	defer srv.Close()

	u := newTestOAuth(oauth2.Endpoint{TokenURL: srv.URL + "/login/oauth/access_token"}, srv.URL)

	actor, err := u.CompleteLogin(context.Background(), "a-code", "expected-state", "submit")
	require.NoError(t, err)

	assert.Nil(t, actor.Teams, "membership must stay unchecked without read:org")
	assert.False(t, actor.IsCommitter())
}

func TestCompleteLoginExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`))
	}))
	defer srv.Close()

	u := newTestOAuth(oauth2.Endpoint{TokenURL: srv.URL + "/login/oauth/access_token"}, srv.URL)

	_, err := u.CompleteLogin(context.Background(), "stale-code", "expected-state", "submit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "github code exchange failed")
}

func TestCompleteLoginRecordsLoginEvent(t *testing.T) {
	srv := githubStub(t, "read:org", http.StatusOK)
	defer srv.Close()

	events := &loginEventRecorder{}
	u := newTestOAuth(oauth2.Endpoint{TokenURL: srv.URL + "/login/oauth/access_token"}, srv.URL)
	u.loginEvents = events

	_, err := u.CompleteLogin(context.Background(), "a-code", "expected-state", "approve")
	require.NoError(t, err)

	require.Len(t, events.created, 1)
	assert.Equal(t, "alice", events.created[0].GHLogin)
	assert.Equal(t, domain.TeamCommitters, events.created[0].Teams)
}

type loginEventRecorder struct {
	created []*domain.LoginEvent
}

func (r *loginEventRecorder) Create(event *domain.LoginEvent) error {
	r.created = append(r.created, event)
	return nil
}

func (r *loginEventRecorder) ListRecent(limit, offset int) ([]*domain.LoginEvent, int, error) {
	return r.created, len(r.created), nil
}
