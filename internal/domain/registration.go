package domain

// RegisterRequest carries the fields of a sign-up form.
type RegisterRequest struct {
	Name            string `json:"name"`
	Mobile          string `json:"mobile"`
	Email           string `json:"email"`
	City            string `json:"city"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Normalized returns a copy with text fields trimmed and the email
// lowercased. Passwords are left as typed.
func (req RegisterRequest) Normalized() RegisterRequest {
	req.Name = TrimSpace(req.Name)
	req.Mobile = TrimSpace(req.Mobile)
	req.Email = NormalizeEmail(req.Email)
	req.City = TrimSpace(req.City)

	return req
}
