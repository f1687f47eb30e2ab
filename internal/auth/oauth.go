package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sakif/autodealer/internal/model"
)

// googleUserInfoURL is the OpenID Connect userinfo endpoint. It returns
// {sub, email, email_verified, name, given_name, family_name, picture}.
const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. We redirect the user to Google with our ClientID and scopes.
//  2. The user approves (or denies) on Google's consent screen.
//  3. Google redirects back to CallbackURL with a short-lived "code".
//  4. We exchange the code for an access token (server-to-server).
//  5. We call the userinfo endpoint with that token.
//
// The access token never reaches the browser; only our own JWT does.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// callbackURL must exactly match an "Authorized redirect URI" of the OAuth
// client in the Google Cloud console.
//
// Scopes: "openid", "email" and "profile" give us the stable subject id,
// the verified email and the display name/picture.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// withEndpoints points the provider at a fake server. Tests only.
func (p *GoogleProvider) withEndpoints(authURL, tokenURL, userInfoURL string) *GoogleProvider {
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:   authURL,
		TokenURL:  tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.userInfoURL = userInfoURL
	return p
}

// AuthURL returns the consent-screen URL carrying the CSRF state.
// "select_account" lets users with several Google accounts pick one.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange trades the authorization code for the user's Google profile.
//
// The returned profile is NOT yet reconciled with a local account; that is
// the service layer's job. An unverified email is cleared here so the
// reconciler treats it as missing rather than trusting it as a match key.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*model.ExternalProfile, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// config.Client adds "Authorization: Bearer <access token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo returned status %d", resp.StatusCode)
	}

	var profile model.ExternalProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo: %w", err)
	}

	if profile.ProviderID == "" {
		return nil, fmt.Errorf("auth: Google returned a profile without a subject")
	}
	if !profile.EmailVerified {
		profile.Email = ""
	}

	return &profile, nil
}
