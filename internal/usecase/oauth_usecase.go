package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/cantera/papers-backend/internal/config"
	"github.com/cantera/papers-backend/internal/domain"
)

var (
	ErrMissingCode         = errors.New("authorization code missing from callback")
	ErrStateMismatch       = errors.New("state value does not match the expected one")
	ErrInvalidReturnTarget = errors.New("unknown post-login redirect target")
	ErrNoAccessToken       = errors.New("github returned no access token")
)

// ScopeReadOrg is the GitHub scope that allows the team membership probe.
const ScopeReadOrg = "read:org"

// allowedReturnTargets is the closed set of post-login redirect targets,
// validated at login-begin and callback-complete to prevent open redirects.
var allowedReturnTargets = map[string]bool{
	"submit":  true,
	"approve": true,
}

// OAuthUsecase drives the GitHub authorization-code flow, from building the
// authorize URL through exchanging the callback code for an Actor.
type OAuthUsecase struct {
	cfg         *config.GitHubConfig
	baseURL     string
	state       string
	loginEvents domain.LoginEventRepository

	// Overridable in tests.
	endpoint   oauth2.Endpoint
	apiBaseURL string
}

func NewOAuthUsecase(cfg *config.GitHubConfig, baseURL, stateSecret string, loginEvents domain.LoginEventRepository) *OAuthUsecase {
	return &OAuthUsecase{
		cfg:         cfg,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		state:       stateSecret,
		loginEvents: loginEvents,
		endpoint:    githuboauth.Endpoint,
		apiBaseURL:  "https://api.github.com",
	}
}

func (u *OAuthUsecase) oauthConfig(returnTarget string) oauth2.Config {
	return oauth2.Config{
		ClientID:     u.cfg.ClientID,
		ClientSecret: u.cfg.ClientSecret,
		Endpoint:     u.endpoint,
		RedirectURL:  u.baseURL + "/github_callback/" + returnTarget,
	}
}

// BeginLogin builds the provider authorize URL embedding client_id, scope,
// the configured anti-forgery state, and a callback parameterized by the
// return target.
func (u *OAuthUsecase) BeginLogin(scope, returnTarget string) (string, error) {
	if !allowedReturnTargets[returnTarget] {
		return "", ErrInvalidReturnTarget
	}

	cfg := u.oauthConfig(returnTarget)
	if scope != "" {
		cfg.Scopes = strings.Fields(scope)
	}

	return cfg.AuthCodeURL(u.state), nil
}

type githubUser struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CompleteLogin validates the callback, exchanges the code for an access
// token, fetches the caller's profile, and probes team membership when the
// granted scope allows it. The state check happens before any network call.
func (u *OAuthUsecase) CompleteLogin(ctx context.Context, code, state, returnTarget string) (*domain.Actor, error) {
	if !allowedReturnTargets[returnTarget] {
		return nil, ErrInvalidReturnTarget
	}
	if code == "" {
		return nil, ErrMissingCode
	}
	if state == "" || state != u.state {
		return nil, ErrStateMismatch
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cfg := u.oauthConfig(returnTarget)
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("github code exchange failed: %w", err)
	}
	if token.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	client := cfg.Client(ctx, token)

	profile, err := u.fetchProfile(client)
	if err != nil {
		return nil, err
	}

	actor := &domain.Actor{
		Display: profile.Login,
		GHID:    profile.ID,
		GHName:  profile.Name,
		GHEmail: profile.Email,
	}

	// The membership probe only runs when read:org was actually granted.
	// Teams stays nil otherwise: never-checked, which authorization logic
	// treats the same as not-a-committer but must not silently upgrade.
	if granted, _ := token.Extra("scope").(string); scopeGranted(granted, ScopeReadOrg) {
		teams, err := u.fetchTeams(client, profile.Login)
		if err != nil {
			return nil, err
		}
		actor.Teams = &teams
	}

	u.recordLogin(actor)

	return actor, nil
}

func (u *OAuthUsecase) fetchProfile(client *http.Client) (*githubUser, error) {
	resp, err := client.Get(u.apiBaseURL + "/user")
	if err != nil {
		return nil, fmt.Errorf("github profile fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("github profile fetch returned status %d: %s", resp.StatusCode, string(body))
	}

	var user githubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to parse github profile: %w", err)
	}
	if user.Login == "" {
		return nil, errors.New("github profile has no login")
	}

	return &user, nil
}

// fetchTeams probes the configured organization team. HTTP 200 means the
// caller is a member; any other status means not a member, never an error.
func (u *OAuthUsecase) fetchTeams(client *http.Client, login string) (string, error) {
	url := fmt.Sprintf("%s/orgs/%s/teams/%s/memberships/%s", u.apiBaseURL, u.cfg.Org, u.cfg.Team, login)
	resp, err := client.Get(url)
	if err != nil {
		return "", fmt.Errorf("github team membership fetch failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK {
		return domain.TeamCommitters, nil
	}
	return "", nil
}

func (u *OAuthUsecase) recordLogin(actor *domain.Actor) {
	if u.loginEvents == nil {
		return
	}

	teams := ""
	if actor.Teams != nil {
		teams = *actor.Teams
	}
	event := &domain.LoginEvent{
		GHLogin: actor.Display,
		GHID:    actor.GHID,
		Teams:   teams,
	}
	if err := u.loginEvents.Create(event); err != nil {
		log.Printf("Failed to record login event for %s: %v", actor.Display, err)
	}
}

// GitHub reports granted scopes as a comma-separated list.
func scopeGranted(granted, want string) bool {
	for _, s := range strings.Split(granted, ",") {
		if strings.TrimSpace(s) == want {
			return true
		}
	}
	return false
}
