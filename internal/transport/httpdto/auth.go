package httpdto

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshTokenRequest carries whichever identifying fields the client
// still has. Either is enough to resolve the account.
type RefreshTokenRequest struct {
	Email  string `json:"email,omitempty"`
	UserID string `json:"user_id,omitempty"`
}
