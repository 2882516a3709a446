package upstream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/costscope/costscope/internal/domain"
)

// refreshMargin is how long before expiry a token is considered stale.
// An expired token must never be used for a request.
const refreshMargin = 60 * time.Second

// authToken is the cached bearer credential for the upstream API.
// Owned exclusively by the Client; never shared outside it.
type authToken struct {
	value     string
	expiresAt time.Time
}

func (t authToken) valid(now time.Time) bool {
	return t.value != "" && now.Before(t.expiresAt.Add(-refreshMargin))
}

// tokenCache guards the current token under concurrent access.
type tokenCache struct {
	mu  sync.RWMutex
	tok authToken
}

func (tc *tokenCache) get() authToken {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.tok
}

func (tc *tokenCache) set(tok authToken) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.tok = tok
}

// token returns a valid bearer token, refreshing it when within the safety
// margin of expiry. Concurrent callers observing an expiring token share a
// single in-flight refresh via singleflight.
func (c *Client) token(ctx context.Context) (string, error) {
	if tok := c.tokens.get(); tok.valid(c.now()) {
		return tok.value, nil
	}

	v, err, _ := c.sf.Do("token", func() (any, error) {
		// Another caller may have refreshed while we waited on the flight.
		if tok := c.tokens.get(); tok.valid(c.now()) {
			return tok.value, nil
		}
		tok, err := c.authenticate(ctx)
		if err != nil {
			return "", err
		}
		c.tokens.set(tok)
		return tok.value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// authenticate performs the OAuth2 password-grant exchange: Basic client
// credentials plus resource-owner username/password. Failures are not
// retried here; retry policy belongs to the caller.
func (c *Client) authenticate(ctx context.Context) (authToken, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+c.tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return authToken{}, fmt.Errorf("create token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return authToken{}, &domain.AuthenticationError{Reason: "token endpoint unreachable"}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.log.Error("upstream token exchange failed", "status", resp.StatusCode)
		return authToken{}, &domain.AuthenticationError{Reason: fmt.Sprintf("token endpoint returned %d", resp.StatusCode)}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return authToken{}, &domain.AuthenticationError{Reason: "malformed token response"}
	}
	if body.AccessToken == "" {
		return authToken{}, &domain.AuthenticationError{Reason: "empty access token"}
	}

	return authToken{
		value:     body.AccessToken,
		expiresAt: c.now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}
