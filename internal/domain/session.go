package domain

// Session represents the currently authenticated identity of a client.
type Session struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
	City   string `json:"city"`
}
