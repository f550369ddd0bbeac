package identity

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrEmailRequired = errors.New("email is required")

// Identity is the plain user record every downstream component depends
// on. The ID partitions all stored session data; the record is replaced
// wholesale on login and cleared wholesale on logout.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Guest builds a local identity with a deterministic ID derived from the
// normalized email, so the same guest always lands on the same session
// partition.
func Guest(name, email string) (Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Identity{}, ErrEmailRequired
	}
	id := base64.StdEncoding.EncodeToString([]byte(strings.ToLower(email)))
	return Identity{
		ID:    id,
		Name:  strings.TrimSpace(name),
		Email: email,
	}, nil
}

// Federated builds an identity from provider-issued claims. The subject
// id is trusted as-is; the core never validates it beyond non-emptiness.
func Federated(subject, name, email string) (Identity, error) {
	if strings.TrimSpace(subject) == "" {
		return Identity{}, errors.New("subject id is required")
	}
	return Identity{
		ID:    subject,
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
	}, nil
}
