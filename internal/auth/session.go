// Package auth signs the user in to Google with a loopback OAuth flow and
// keeps the resulting token in the OS keyring.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

const (
	DefaultRevokeURL   = "https://accounts.google.com/o/oauth2/revoke"
	DefaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

var (
	ErrNotSignedIn         = errors.New("not signed in")
	ErrSessionExpired      = errors.New("session expired, sign in again")
	ErrCancelled           = errors.New("authentication cancelled or failed")
	ErrStateMismatch       = errors.New("oauth state mismatch")
	ErrClientNotConfigured = errors.New("google OAuth client not configured (set JOBPREP_GOOGLE_CLIENT_ID and JOBPREP_GOOGLE_CLIENT_SECRET)")
)

// Session is the signed-in state. Callers own it; nothing in this package
// keeps a reference after a call returns.
type Session struct {
	Token *oauth2.Token
	Email string
}

// SignedIn reports whether s carries a token.
func (s *Session) SignedIn() bool {
	return s != nil && s.Token != nil && s.Token.AccessToken != ""
}

// Authenticator runs the sign-in, resume and sign-out flows.
type Authenticator struct {
	config      oauth2.Config
	store       Store
	httpClient  *http.Client
	userinfoURL string
	revokeURL   string
	openURL     func(string) error
}

type Option func(*Authenticator)

func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(a *Authenticator) { a.config.Endpoint = ep }
}

func WithUserinfoURL(u string) Option {
	return func(a *Authenticator) {
		if u != "" {
			a.userinfoURL = u
		}
	}
}

func WithRevokeURL(u string) Option {
	return func(a *Authenticator) {
		if u != "" {
			a.revokeURL = u
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(a *Authenticator) {
		if hc != nil {
			a.httpClient = hc
		}
	}
}

// WithBrowser replaces the function used to open the consent page.
func WithBrowser(open func(string) error) Option {
	return func(a *Authenticator) { a.openURL = open }
}

func NewAuthenticator(clientID, clientSecret string, store Store, opts ...Option) *Authenticator {
	a := &Authenticator{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", drive.DriveFileScope},
		},
		store:       store,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		userinfoURL: DefaultUserinfoURL,
		revokeURL:   DefaultRevokeURL,
		openURL:     browser.OpenURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SignInOptions control how the consent page is presented.
type SignInOptions struct {
	NoBrowser bool
	// Notify is called once with the consent URL. openErr is non-nil when the
	// browser could not be opened, or ErrBrowserSkipped with NoBrowser.
	Notify func(authURL string, openErr error)
}

var ErrBrowserSkipped = errors.New("browser launch skipped")

type callbackResult struct {
	code string
	err  error
}

// SignIn runs the authorization-code flow with PKCE against a loopback
// redirect, persists the token and returns the new session.
func (a *Authenticator) SignIn(ctx context.Context, in SignInOptions) (*Session, error) {
	if a.config.ClientID == "" || a.config.ClientSecret == "" {
		return nil, ErrClientNotConfigured
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	cfg := a.config
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		res := parseCallback(r.URL.Query(), state)
		if res.err != nil {
			http.Error(w, "Sign-in failed. You can close this window.", http.StatusBadRequest)
		} else {
			_, _ = io.WriteString(w, "Signed in to jobprep. You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	openErr := ErrBrowserSkipped
	if !in.NoBrowser {
		openErr = a.openURL(authURL)
	}
	if in.Notify != nil {
		in.Notify(authURL, openErr)
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := cfg.Exchange(a.clientContext(ctx), res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	sess := &Session{Token: tok}
	sess.Email = emailFromIDToken(tok)
	if sess.Email == "" {
		sess.Email = a.fetchEmail(ctx, tok)
	}

	if err := SaveToken(a.store, tok); err != nil {
		return nil, err
	}
	return sess, nil
}

func parseCallback(q url.Values, state string) callbackResult {
	if e := q.Get("error"); e != "" {
		if e == "access_denied" {
			return callbackResult{err: ErrCancelled}
		}
		return callbackResult{err: fmt.Errorf("authorization failed: %s", e)}
	}
	if q.Get("state") != state {
		return callbackResult{err: ErrStateMismatch}
	}
	code := q.Get("code")
	if code == "" {
		return callbackResult{err: ErrCancelled}
	}
	return callbackResult{code: code}
}

// Resume restores a session from the keyring without any user interaction,
// refreshing the access token when it has expired.
func (a *Authenticator) Resume(ctx context.Context) (*Session, error) {
	stored, err := LoadToken(a.store)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotSignedIn
	}
	if err != nil {
		return nil, err
	}

	tok, err := a.config.TokenSource(a.clientContext(ctx), stored).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if tok.AccessToken != stored.AccessToken {
		if err := SaveToken(a.store, tok); err != nil {
			pterm.Debug.Printf("Could not persist refreshed token: %v\n", err)
		}
	}

	return &Session{Token: tok, Email: a.fetchEmail(ctx, tok)}, nil
}

// SignOut revokes the session's token and forgets it locally. A failed
// revocation is reported as a warning; the local token is removed regardless.
func (a *Authenticator) SignOut(ctx context.Context, sess *Session) error {
	if !sess.SignedIn() {
		return nil
	}

	if err := a.revoke(ctx, sess.Token); err != nil {
		pterm.Warning.Printf("Could not revoke token: %v\n", err)
	}

	sess.Token = nil
	sess.Email = ""
	return a.store.Delete(KeyOAuthToken)
}

// Forget deletes the persisted token without contacting Google. It is the
// way out when a session can no longer be resumed.
func (a *Authenticator) Forget() error {
	return a.store.Delete(KeyOAuthToken)
}

// TokenSource returns a refreshing token source for sess, for API clients.
func (a *Authenticator) TokenSource(ctx context.Context, sess *Session) oauth2.TokenSource {
	return a.config.TokenSource(a.clientContext(ctx), sess.Token)
}

func (a *Authenticator) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func (a *Authenticator) revoke(ctx context.Context, tok *oauth2.Token) error {
	token := tok.AccessToken
	if tok.RefreshToken != "" {
		// Revoking the refresh token also invalidates its access tokens.
		token = tok.RefreshToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.revokeURL+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revoke returned %s", resp.Status)
	}
	return nil
}

// fetchEmail asks the userinfo endpoint for the account email. Any failure
// leaves the email empty.
func (a *Authenticator) fetchEmail(ctx context.Context, tok *oauth2.Token) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userinfoURL, nil)
	if err != nil {
		return ""
	}
	tok.SetAuthHeader(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		pterm.Debug.Printf("Error fetching user info: %v\n", err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		pterm.Debug.Printf("Could not fetch user info: %d\n", resp.StatusCode)
		return ""
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		pterm.Debug.Printf("Invalid user info response: %v\n", err)
		return ""
	}
	return info.Email
}

// emailFromIDToken reads the email claim of the id_token extra, if any.
// The signature is not checked.
func emailFromIDToken(tok *oauth2.Token) string {
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		pterm.Debug.Printf("Could not parse id_token: %v\n", err)
		return ""
	}
	email, _ := claims["email"].(string)
	return strings.TrimSpace(email)
}
