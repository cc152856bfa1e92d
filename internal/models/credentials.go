package models

// SessionCredentials holds the three credential fields issued by a server on
// successful authentication. All three are set together on login and cleared
// together on logout or a failed refresh; a partially-populated set never
// survives a completed transition.
type SessionCredentials struct {
	Token        string `json:"token"`         // short-lived bearer token
	RefreshToken string `json:"refresh_token"` // longer-lived, mints new bearer tokens
	APIKey       string `json:"api_key"`       // stable key for URL-addressable resources
}

// IsEmpty reports whether no credential fields are populated
func (c SessionCredentials) IsEmpty() bool {
	return c.Token == "" && c.RefreshToken == "" && c.APIKey == ""
}

// User is the authenticated identity returned by the login endpoint
type User struct {
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	APIKey       string   `json:"apiKey"`
	Roles        []string `json:"roles"`
}
