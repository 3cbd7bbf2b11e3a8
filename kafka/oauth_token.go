package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokens are refreshed this long before they expire
const tokenExpiryMargin = 10 * time.Second

// tokenSource fetches OAuth access tokens and reuses them until shortly before they expire. The broker asks for a
// token on every new connection, the token endpoint should not see a request for each of them.
type tokenSource struct {
	cfg    OAuthBearerConfig
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(cfg OAuthBearerConfig) *tokenSource {
	return &tokenSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expires) {
		return s.token, nil
	}

	token, expiresIn, err := s.request(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	// without expires_in the token is used for this connection only
	s.expires = s.now()
	if expiresIn > tokenExpiryMargin {
		s.expires = s.expires.Add(expiresIn - tokenExpiryMargin)
	}
	return token, nil
}

func (s *tokenSource) request(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{"grant_type": []string{"client_credentials"}}
	if s.cfg.Scope != "" {
		form.Set("scope", s.cfg.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(url.QueryEscape(s.cfg.ClientID), url.QueryEscape(s.cfg.ClientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token request failed with status code %d", resp.StatusCode)
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", 0, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return "", 0, fmt.Errorf("access_token not found in token response")
	}
	return tokenResponse.AccessToken, time.Duration(tokenResponse.ExpiresIn) * time.Second, nil
}
