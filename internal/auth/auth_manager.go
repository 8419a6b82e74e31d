package auth

import (
	"context"
	"fmt"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/logger"
)

// AuthManager resolves Kite Connect credentials, preferring the auth
// service and falling back to the api_key and session_token in config.
type AuthManager struct {
	config     config.AuthConfig
	authClient *AuthClient
	log        *logger.Entry
}

// NewAuthManager creates a new authentication manager
func NewAuthManager(cfg config.AuthConfig) *AuthManager {
	var authClient *AuthClient
	if cfg.AuthServiceURL != "" {
		authClient = NewAuthClient(cfg.AuthServiceURL, cfg.AuthServiceAPIKey)
	}
	return &AuthManager{
		config:     cfg,
		authClient: authClient,
		log:        logger.GetLogger().WithComponent("auth"),
	}
}

// Login returns the credentials to use for the broker API
func (am *AuthManager) Login(ctx context.Context) (AuthCredentialsResult, error) {
	if am.authClient != nil && am.config.BrokerName != "" {
		credentials, err := am.authClient.GetBrokerCredentials(ctx, am.config.BrokerName)
		if err == nil {
			am.log.WithFields(logger.Fields{"broker": am.config.BrokerName, "source": "auth_service"}).Info("authenticated")
			return AuthCredentialsResult{
				ApiKey:       credentials.ApiKey,
				SessionToken: credentials.SessionToken,
			}, nil
		}
		am.log.WithError(err).Warn("auth service failed, falling back to configured credentials")
	}

	if am.config.ApiKey != "" && am.config.SessionToken != "" {
		am.log.WithFields(logger.Fields{"source": "config"}).Info("authenticated")
		return AuthCredentialsResult{
			ApiKey:       am.config.ApiKey,
			SessionToken: am.config.SessionToken,
		}, nil
	}

	return AuthCredentialsResult{}, fmt.Errorf("no valid credentials available; set api_key and session_token or configure auth_service")
}

// GetClient logs in and returns an authenticated KiteConnect client
func (am *AuthManager) GetClient(ctx context.Context) (*kiteconnect.Client, error) {
	creds, err := am.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to login before getting client: %w", err)
	}
	kite := kiteconnect.New(creds.ApiKey)
	kite.SetAccessToken(creds.SessionToken)
	return kite, nil
}
