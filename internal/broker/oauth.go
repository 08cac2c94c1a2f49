package broker

import (
	"fmt"
	"net/url"

	"github.com/dghubble/oauth1"
)

// authorizeBaseURL is where the user approves the app and receives the
// verification code. It is the same host for sandbox and production.
const authorizeBaseURL = "https://us.etrade.com/e/t/etws/authorize"

// OAuthFlow drives the three-legged OAuth 1.0a handshake: request token,
// out-of-band user authorization, then access token exchange.
type OAuthFlow struct {
	config      *oauth1.Config
	consumerKey string
}

// NewOAuthFlow creates a flow for the given consumer key pair.
func NewOAuthFlow(consumerKey, consumerSecret string, sandbox bool) *OAuthFlow {
	apiBase := "https://api.etrade.com"
	if sandbox {
		apiBase = "https://apisb.etrade.com"
	}
	return &OAuthFlow{
		config: &oauth1.Config{
			ConsumerKey:    consumerKey,
			ConsumerSecret: consumerSecret,
			CallbackURL:    "oob",
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: apiBase + "/oauth/request_token",
				AccessTokenURL:  apiBase + "/oauth/access_token",
			},
		},
		consumerKey: consumerKey,
	}
}

// RequestToken obtains a request token and the URL the user must visit to
// authorize the app. The authorize page shows a verification code the user
// pastes back.
func (f *OAuthFlow) RequestToken() (token, secret, authorizeURL string, err error) {
	token, secret, err = f.config.RequestToken()
	if err != nil {
		return "", "", "", fmt.Errorf("request token: %w", err)
	}

	// The authorize endpoint takes the consumer key and request token as
	// key/token query params rather than the standard oauth_token.
	params := url.Values{}
	params.Set("key", f.consumerKey)
	params.Set("token", token)
	authorizeURL = authorizeBaseURL + "?" + params.Encode()

	return token, secret, authorizeURL, nil
}

// AccessToken exchanges the verified request token for an access token pair.
func (f *OAuthFlow) AccessToken(requestToken, requestSecret, verifier string) (string, string, error) {
	accessToken, accessSecret, err := f.config.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		return "", "", fmt.Errorf("access token: %w", err)
	}
	return accessToken, accessSecret, nil
}
