package auth

// Service is the storyteller account contract consumed by the gateway and HTTP handlers.
// ResolveSession only accepts storyteller sessions; its names are display names,
// safe to embed in a match key.
type Service interface {
	Register(name, password string) (accountID uint64, sessionToken string, err error)
	Login(name, password string) (accountID uint64, sessionToken string, err error)
	ResolveSession(token string) (accountID uint64, name string, ok bool)
	Logout(token string)
	Close() error

	// ResolveOrCreateSpectator binds token to an account of either kind, minting an
	// anonymous spectator when the token is unknown or expired.
	ResolveOrCreateSpectator(token string) (accountID uint64, name, sessionToken string, reused bool)
}
