// Package earthdata searches for and downloads gridded granules from the
// NASA Earthdata repository.
package earthdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrAuthenticationFailed is returned once every configured login has been
// rejected. It is the only repository error that fails a whole request.
var ErrAuthenticationFailed = errors.New("all Earthdata logins were rejected")

// errRejected marks a login the server refused, as opposed to a transport error.
var errRejected = errors.New("login rejected")

// State is the authenticator's position in its login sequence.
type State int

const (
	Unauthenticated State = iota
	AuthenticatedPrimary
	AuthenticatedBackup
	Failed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedPrimary:
		return "authenticated-primary"
	case AuthenticatedBackup:
		return "authenticated-backup"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Credentials is one Earthdata login.
type Credentials struct {
	Username string
	Password string
}

func (c *Credentials) usable() bool {
	return c != nil && c.Username != "" && c.Password != ""
}

// Authenticator logs in to Earthdata with a primary login, falling back to
// a backup login. A login the server rejects is remembered and not retried.
// Transport errors leave the state unchanged so the next call tries again.
type Authenticator struct {
	mu sync.Mutex

	endpoint string
	client   *http.Client
	logger   *zap.SugaredLogger

	primary *Credentials
	backup  *Credentials

	state           State
	token           string
	primaryRejected bool
	backupRejected  bool
}

// NewAuthenticator creates an authenticator against the URS endpoint.
func NewAuthenticator(endpoint string, primary, backup *Credentials, client *http.Client, logger *zap.SugaredLogger) *Authenticator {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Authenticator{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		logger:   logger,
		primary:  primary,
		backup:   backup,
		// Missing logins count as rejected from the start.
		primaryRejected: !primary.usable(),
		backupRejected:  !backup.usable(),
	}
}

// State returns the current state.
func (a *Authenticator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Token returns a bearer token, logging in first if needed.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case AuthenticatedPrimary, AuthenticatedBackup:
		return a.token, nil
	case Failed:
		return "", ErrAuthenticationFailed
	}

	if !a.primaryRejected {
		token, err := a.login(ctx, a.primary)
		switch {
		case err == nil:
			a.logger.Info("authenticated with primary Earthdata login")
			a.state, a.token = AuthenticatedPrimary, token
			return token, nil
		case errors.Is(err, errRejected):
			a.logger.Warnw("primary Earthdata login rejected, trying backup", "error", err)
			a.primaryRejected = true
		default:
			return "", err
		}
	}

	if !a.backupRejected {
		token, err := a.login(ctx, a.backup)
		switch {
		case err == nil:
			a.logger.Info("authenticated with backup Earthdata login")
			a.state, a.token = AuthenticatedBackup, token
			return token, nil
		case errors.Is(err, errRejected):
			a.logger.Errorw("backup Earthdata login rejected", "error", err)
			a.backupRejected = true
		default:
			return "", err
		}
	}

	a.state = Failed
	return "", ErrAuthenticationFailed
}

// Invalidate discards a token the data server refused. The same login is
// tried again on the next call to Token.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == AuthenticatedPrimary || a.state == AuthenticatedBackup {
		a.state, a.token = Unauthenticated, ""
	}
}

type tokenResponse struct {
	AccessToken    string `json:"access_token"`
	TokenType      string `json:"token_type"`
	ExpirationDate string `json:"expiration_date"`
}

// login exchanges a username and password for a URS bearer token.
func (a *Authenticator) login(ctx context.Context, c *Credentials) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/api/users/find_or_create_token", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.Username, c.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error contacting URS: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("error reading URS response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: user %s: %s", errRejected, c.Username, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("URS returned %s", resp.Status)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("error decoding URS token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: user %s: empty token", errRejected, c.Username)
	}
	return tr.AccessToken, nil
}
