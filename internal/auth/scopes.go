package auth

const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopeRead    = "drivehub:read"
	ScopeWrite   = "drivehub:write"
)

// AllScopes defines the full set of scopes requested by clients
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeRead,
	ScopeWrite,
}
