package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultExchangeTimeout bounds a single token endpoint call.
const DefaultExchangeTimeout = 15 * time.Second

const maxErrorBody = 4 << 10

// TokenRequest carries everything needed for an authorization-code exchange.
type TokenRequest struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Code         string
	CodeVerifier string // empty for non-PKCE providers
	RedirectURI  string
}

// TokenResponse is the normalized result of a successful exchange or refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
}

// ExpiresAt converts the relative expiry to an absolute time. Providers that
// omit expires_in get a conservative one-hour default.
func (t *TokenResponse) ExpiresAt(now time.Time) time.Time {
	if t.ExpiresIn <= 0 {
		return now.Add(time.Hour)
	}

	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// SplitScope splits a provider's space-delimited scope string.
func SplitScope(s string) []string {
	return strings.Fields(s)
}

// ExchangeError is returned when the provider's token endpoint answers with a
// non-2xx status. The provider's response body is attached for server-side
// logging; authorization codes are single-use so the call is never retried.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.Body)
}

// ExchangeCodeForTokens performs the OAuth2 authorization-code grant, with
// the PKCE verifier included when present. Non-2xx responses are a hard
// failure surfaced as *ExchangeError.
func ExchangeCodeForTokens(ctx context.Context, client *http.Client, req TokenRequest) (*TokenResponse, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultExchangeTimeout}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", req.Code)
	form.Set("client_id", req.ClientID)
	form.Set("redirect_uri", req.RedirectURI)

	if req.ClientSecret != "" {
		form.Set("client_secret", req.ClientSecret)
	}

	if req.CodeVerifier != "" {
		form.Set("code_verifier", req.CodeVerifier)
	}

	return postTokenForm(ctx, client, req.TokenURL, form)
}

// RefreshAccessToken exchanges a refresh token for a fresh access token.
func RefreshAccessToken(ctx context.Context, client *http.Client, tokenURL, clientID, clientSecret, refreshToken string) (*TokenResponse, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultExchangeTimeout}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", clientID)

	if clientSecret != "" {
		form.Set("client_secret", clientSecret)
	}

	return postTokenForm(ctx, client, tokenURL, form)
}

func postTokenForm(ctx context.Context, client *http.Client, tokenURL string, form url.Values) (*TokenResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	if tokens.TokenType == "" {
		tokens.TokenType = "Bearer"
	}

	return &tokens, nil
}
