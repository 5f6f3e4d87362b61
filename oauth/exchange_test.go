package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExchangeCodeForTokens(t *testing.T) {
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}

		gotForm = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"code":          r.PostFormValue("code"),
			"client_id":     r.PostFormValue("client_id"),
			"client_secret": r.PostFormValue("client_secret"),
			"code_verifier": r.PostFormValue("code_verifier"),
			"redirect_uri":  r.PostFormValue("redirect_uri"),
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","refresh_token":"rt-456","expires_in":3600,"token_type":"Bearer","scope":"activity"}`))
	}))
	defer srv.Close()

	tokens, err := ExchangeCodeForTokens(context.Background(), srv.Client(), TokenRequest{
		TokenURL:     srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		Code:         "auth-code",
		CodeVerifier: "verifier",
		RedirectURI:  "https://app.example.com/cb",
	})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	if tokens.AccessToken != "at-123" || tokens.RefreshToken != "rt-456" {
		t.Errorf("unexpected tokens: %+v", tokens)
	}

	if tokens.ExpiresIn != 3600 {
		t.Errorf("expected expires_in 3600, got %d", tokens.ExpiresIn)
	}

	want := map[string]string{
		"grant_type":    "authorization_code",
		"code":          "auth-code",
		"client_id":     "cid",
		"client_secret": "secret",
		"code_verifier": "verifier",
		"redirect_uri":  "https://app.example.com/cb",
	}

	for k, v := range want {
		if gotForm[k] != v {
			t.Errorf("form field %s = %q, want %q", k, gotForm[k], v)
		}
	}
}

func TestExchangeCodeForTokens_ProviderRejects(t *testing.T) {
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Code was already redeemed."}`))
	}))
	defer srv.Close()

	_, err := ExchangeCodeForTokens(context.Background(), srv.Client(), TokenRequest{
		TokenURL: srv.URL,
		ClientID: "cid",
		Code:     "used-code",
	})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}

	var exchangeErr *ExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("expected *ExchangeError, got %T: %v", err, err)
	}

	if exchangeErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", exchangeErr.StatusCode)
	}

	if exchangeErr.Body == "" {
		t.Error("expected provider error body to be attached")
	}

	// Authorization codes are single-use: the client must not retry.
	if calls != 1 {
		t.Errorf("expected exactly 1 call to the token endpoint, got %d", calls)
	}
}

func TestExchangeCodeForTokens_TokenTypeDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123"}`))
	}))
	defer srv.Close()

	tokens, err := ExchangeCodeForTokens(context.Background(), srv.Client(), TokenRequest{
		TokenURL: srv.URL,
		ClientID: "cid",
		Code:     "code",
	})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	if tokens.TokenType != "Bearer" {
		t.Errorf("expected Bearer default, got %q", tokens.TokenType)
	}

	now := time.Now()
	if got := tokens.ExpiresAt(now); !got.After(now) {
		t.Error("expected default expiry in the future when expires_in is absent")
	}
}

func TestRefreshAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.PostFormValue("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.PostFormValue("refresh_token"); got != "rt-old" {
			t.Errorf("refresh_token = %q, want rt-old", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-new","expires_in":600,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	tokens, err := RefreshAccessToken(context.Background(), srv.Client(), srv.URL, "cid", "secret", "rt-old")
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if tokens.AccessToken != "at-new" {
		t.Errorf("unexpected access token %q", tokens.AccessToken)
	}
}
