package domain

import (
	"strings"
	"time"
	"unicode"
)

// Account is a registered user record. It is immutable once created.
type Account struct {
	Name         string    // Display name
	Mobile       string    // 10 decimal digits, unique across accounts
	Email        string    // Normalized (trimmed, lowercased) email, primary key
	City         string    // Optional free text
	PasswordHash string    // Lowercase hex digest of the password
	CreatedAt    time.Time // Set once at registration
}

// Session returns the credential-free view of the account.
func (a *Account) Session() Session {
	return Session{
		Name:   a.Name,
		Email:  a.Email,
		Mobile: a.Mobile,
		City:   a.City,
	}
}

// Accounts maps normalized email to account.
type Accounts map[string]*Account

// FindByMobile returns the first account with the given mobile number.
func (accounts Accounts) FindByMobile(mobile string) (*Account, bool) {
	for _, account := range accounts {
		if account.Mobile == mobile {
			return account, true
		}
	}

	return nil, false
}

// NormalizeEmail trims and lowercases an email address. The result is the
// account's primary key.
func NormalizeEmail(email string) string {
	return strings.ToLower(TrimSpace(email))
}

// IsSpace reports whether r is form-field whitespace: ASCII control
// spaces, any Unicode separator (Zs, Zl, Zp) and the byte order mark.
// U+0085 is not whitespace here.
func IsSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\uFEFF':
		return true
	}

	return unicode.Is(unicode.Z, r)
}

// TrimSpace removes leading and trailing IsSpace characters.
func TrimSpace(s string) string {
	return strings.TrimFunc(s, IsSpace)
}
