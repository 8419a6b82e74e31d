package auth

// AuthCredentials is the auth_service credentials payload
type AuthCredentials struct {
	ID           int    `json:"id"`
	Broker       string `json:"broker"`
	ApiKey       string `json:"api_key"`
	ApiSecret    string `json:"api_secret"`
	SessionToken string `json:"session_token"`
	IsActive     bool   `json:"is_active"`
	AccountID    string `json:"account_id"`
}

// AuthCredentialsResult holds the result of a login attempt
type AuthCredentialsResult struct {
	ApiKey       string
	SessionToken string
}
