package googletasks

import (
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/tasks/v1"

	"github.com/ducphamhoang/momentum-sync/internal/auth"
)

// googleRevokeURL is Google's OAuth2 token revocation endpoint.
const googleRevokeURL = "https://oauth2.googleapis.com/revoke"

// OAuthConfig holds the Google OAuth client settings for this provider.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// DefaultOAuthConfig returns config from environment
func DefaultOAuthConfig() OAuthConfig {
	return OAuthConfig{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  "http://localhost:8080/api/auth/callback",
	}
}

// IsConfigured checks if OAuth is properly configured
func IsConfigured() bool {
	return os.Getenv("GOOGLE_CLIENT_ID") != "" && os.Getenv("GOOGLE_CLIENT_SECRET") != ""
}

// ProviderConfig builds the credential-manager entry for Google Tasks.
func ProviderConfig(cfg OAuthConfig) auth.ProviderConfig {
	return auth.ProviderConfig{
		OAuth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{tasks.TasksScope},
			Endpoint:     google.Endpoint,
		},
		RevokeURL: googleRevokeURL,
	}
}
