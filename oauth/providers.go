package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// endpointProvider is the shared implementation behind all supported
// services; each constructor below fixes the endpoints, scopes and extra
// authorization parameters that provider requires.
type endpointProvider struct {
	name        models.ServiceName
	authURL     string
	tokenURL    string
	scopes      []string
	extraParams url.Values
	usePKCE     bool
	creds       Credentials
	client      *http.Client
}

func (p *endpointProvider) Name() models.ServiceName { return p.name }
func (p *endpointProvider) Scopes() []string         { return p.scopes }
func (p *endpointProvider) SupportsPKCE() bool       { return p.usePKCE }

func (p *endpointProvider) BuildAuthURL(state, codeChallenge string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", p.creds.ClientID)
	q.Set("redirect_uri", p.creds.RedirectURI)
	q.Set("scope", strings.Join(p.scopes, " "))
	q.Set("state", state)

	if p.usePKCE && codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", ChallengeS256)
	}

	for key, values := range p.extraParams {
		for _, v := range values {
			q.Set(key, v)
		}
	}

	return p.authURL + "?" + q.Encode()
}

func (p *endpointProvider) Exchange(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	return ExchangeCodeForTokens(ctx, p.client, TokenRequest{
		TokenURL:     p.tokenURL,
		ClientID:     p.creds.ClientID,
		ClientSecret: p.creds.ClientSecret,
		Code:         code,
		CodeVerifier: codeVerifier,
		RedirectURI:  p.creds.RedirectURI,
	})
}

func (p *endpointProvider) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return RefreshAccessToken(ctx, p.client, p.tokenURL, p.creds.ClientID, p.creds.ClientSecret, refreshToken)
}

// NewGoogleFit builds the Google Fit provider. Google requires
// access_type=offline and prompt=consent to hand out a refresh token.
func NewGoogleFit(creds Credentials) Provider {
	return &endpointProvider{
		name:     models.ServiceGoogleFit,
		authURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		tokenURL: "https://oauth2.googleapis.com/token",
		scopes: []string{
			"https://www.googleapis.com/auth/fitness.activity.read",
			"https://www.googleapis.com/auth/fitness.body.read",
			"https://www.googleapis.com/auth/fitness.heart_rate.read",
			"https://www.googleapis.com/auth/fitness.sleep.read",
		},
		extraParams: url.Values{
			"access_type": {"offline"},
			"prompt":      {"consent"},
		},
		creds:  creds,
		client: HTTPClient(),
	}
}

// NewFitbit builds the Fitbit provider. Fitbit supports PKCE with S256.
func NewFitbit(creds Credentials) Provider {
	return &endpointProvider{
		name:     models.ServiceFitbit,
		authURL:  "https://www.fitbit.com/oauth2/authorize",
		tokenURL: "https://api.fitbit.com/oauth2/token",
		scopes: []string{
			"activity",
			"heartrate",
			"sleep",
			"weight",
		},
		usePKCE: true,
		creds:   creds,
		client:  HTTPClient(),
	}
}

// NewAppleHealth builds the Apple provider used for Sign in with Apple backed
// health sync. Apple mandates form_post responses for scoped requests.
func NewAppleHealth(creds Credentials) Provider {
	return &endpointProvider{
		name:     models.ServiceAppleHealth,
		authURL:  "https://appleid.apple.com/auth/authorize",
		tokenURL: "https://appleid.apple.com/auth/token",
		scopes:   []string{"name", "email"},
		extraParams: url.Values{
			"response_mode": {"form_post"},
		},
		creds:  creds,
		client: HTTPClient(),
	}
}
