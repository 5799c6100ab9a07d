package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hylla/syssla/internal/store"
)

// authTimeout bounds how long SignIn waits for the browser redirect.
const authTimeout = 5 * time.Minute

// OAuthConfig describes the provider endpoints and the local callback.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	RedirectPort string
	// CacheDir holds the token and profile files between sessions.
	CacheDir string
}

// OAuth is the hosted-backend identity: an authorization-code flow with a
// local redirect listener and a disk token cache, so a signed-in session
// survives restarts without re-prompting.
type OAuth struct {
	cfg      *oauth2.Config
	userInfo string
	cacheDir string
	port     string
	client   *http.Client

	user   store.User
	signed bool
}

// NewOAuth validates the provider settings and loads any cached session.
func NewOAuth(cfg OAuthConfig) (*OAuth, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("oauth client id is required")
	}
	if strings.TrimSpace(cfg.AuthURL) == "" || strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, errors.New("oauth endpoints are required")
	}
	if strings.TrimSpace(cfg.CacheDir) == "" {
		return nil, errors.New("oauth cache dir is required")
	}
	port := strings.TrimSpace(cfg.RedirectPort)
	if port == "" {
		port = "6789"
	}

	o := &OAuth{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			RedirectURL:  fmt.Sprintf("http://127.0.0.1:%s/callback", port),
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfo: cfg.UserInfoURL,
		cacheDir: cfg.CacheDir,
		port:     port,
		client:   http.DefaultClient,
	}
	o.restoreSession()
	return o, nil
}

// CurrentUser reports the cached session, if any.
func (o *OAuth) CurrentUser() (store.User, bool) {
	if !o.signed {
		return store.User{}, false
	}
	return o.user, true
}

// SignIn runs the authorization-code flow: opens a local listener for the
// redirect, prints the provider URL for the user's browser, exchanges the
// code, fetches the profile, and caches both to disk.
func (o *OAuth) SignIn(ctx context.Context) (store.User, error) {
	tok, err := o.tokenFromCache()
	if err != nil {
		tok, err = o.tokenFromWeb(ctx)
		if err != nil {
			return store.User{}, err
		}
		if err := o.saveToken(tok); err != nil {
			return store.User{}, err
		}
	}

	user, err := o.fetchUser(ctx, tok)
	if err != nil {
		return store.User{}, err
	}
	if err := o.saveProfile(user); err != nil {
		return store.User{}, err
	}
	o.user = user
	o.signed = true
	return user, nil
}

// SignOut drops the cached session.
func (o *OAuth) SignOut(ctx context.Context) error {
	o.user = store.User{}
	o.signed = false
	if err := os.Remove(o.tokenPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token cache: %w", err)
	}
	if err := os.Remove(o.profilePath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove profile cache: %w", err)
	}
	return nil
}

// tokenFromWeb captures the authorization code on a local listener and
// exchanges it for a token.
func (o *OAuth) tokenFromWeb(ctx context.Context) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:"+o.port)
	if err != nil {
		return nil, fmt.Errorf("start callback listener: %w", err)
	}
	defer listener.Close()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "authorization code not found", http.StatusBadRequest)
				errCh <- errors.New("authorization code not found in redirect")
				return
			}
			fmt.Fprint(w, "Signed in. You can close this window.")
			codeCh <- code
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := o.cfg.AuthCodeURL("state", oauth2.AccessTypeOffline)
	fmt.Printf("Open this URL in your browser to sign in:\n%s\n", authURL)

	select {
	case code := <-codeCh:
		exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := o.cfg.Exchange(exchangeCtx, code)
		if err != nil {
			return nil, fmt.Errorf("exchange authorization code: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timed out")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetchUser resolves the signed-in profile from the provider's userinfo
// endpoint.
func (o *OAuth) fetchUser(ctx context.Context, tok *oauth2.Token) (store.User, error) {
	if strings.TrimSpace(o.userInfo) == "" {
		return store.User{}, errors.New("oauth userinfo url is required")
	}
	httpCtx := context.WithValue(ctx, oauth2.HTTPClient, o.client)
	client := o.cfg.Client(httpCtx, tok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.userInfo, nil)
	if err != nil {
		return store.User{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return store.User{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return store.User{}, fmt.Errorf("fetch userinfo: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Sub   string `json:"sub"`
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return store.User{}, fmt.Errorf("decode userinfo: %w", err)
	}
	id := payload.Sub
	if id == "" {
		id = payload.ID
	}
	if id == "" {
		return store.User{}, errors.New("userinfo response has no subject id")
	}
	return store.User{ID: id, Email: payload.Email, Name: payload.Name}, nil
}

// restoreSession loads the cached profile so a previous sign-in survives a
// restart. An unreadable cache is treated as signed out.
func (o *OAuth) restoreSession() {
	data, err := os.ReadFile(o.profilePath())
	if err != nil {
		return
	}
	var user store.User
	if err := json.Unmarshal(data, &user); err != nil || user.ID == "" {
		return
	}
	if _, err := o.tokenFromCache(); err != nil {
		return
	}
	o.user = user
	o.signed = true
}

func (o *OAuth) tokenPath() string {
	return filepath.Join(o.cacheDir, "token.json")
}

func (o *OAuth) profilePath() string {
	return filepath.Join(o.cacheDir, "profile.json")
}

func (o *OAuth) tokenFromCache() (*oauth2.Token, error) {
	data, err := os.ReadFile(o.tokenPath())
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("decode token cache: %w", err)
	}
	return tok, nil
}

func (o *OAuth) saveToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(o.cacheDir, 0o700); err != nil {
		return fmt.Errorf("create token cache dir: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.tokenPath(), data, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}

func (o *OAuth) saveProfile(user store.User) error {
	if err := os.MkdirAll(o.cacheDir, 0o700); err != nil {
		return fmt.Errorf("create profile cache dir: %w", err)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.profilePath(), data, 0o600); err != nil {
		return fmt.Errorf("write profile cache: %w", err)
	}
	return nil
}
