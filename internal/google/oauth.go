package google

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/whenfree/whenfree/internal/config"
)

// DefaultOAuthScopes are the Google OAuth scopes the engine needs.
//
// Calendar access covers calendar list, events, and free/busy queries; the
// OpenID Connect scopes identify which Google account was linked so the
// account record can carry its email.
var DefaultOAuthScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/calendar",
}

// NewOAuthConfig builds the OAuth2 configuration from application config.
func NewOAuthConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     googleoauth.Endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       DefaultOAuthScopes,
	}
}

// AuthCodeURL returns the authorization URL for linking a new account.
// Offline access plus forced consent so Google always issues a refresh token,
// even if the user has linked this client before.
func AuthCodeURL(conf *oauth2.Config) string {
	return conf.AuthCodeURL("state",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// HTTPClient returns an HTTP client that sends the given access token as a
// Bearer credential. The token is static: refresh is owned by the token
// manager, never by the transport, so a mid-request expiry surfaces as a 401
// the caller handles with its single refresh-and-retry.
func HTTPClient(ctx context.Context, accessToken string) *http.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			ForceAttemptHTTP2: false,
		}
	}

	return client
}
