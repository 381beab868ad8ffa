// Package model defines domain entities used by services and repositories.
package model

import "time"

// Tokens collects issued access/refresh tokens (refresh optional).
type Tokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time // access token expiry
}
