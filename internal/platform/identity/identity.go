// Package identity names who a session or preference belongs to.
package identity

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindUser  Kind = "user"
	KindGuest Kind = "guest"
)

// Identity is either a durable account (user) or an install-scoped guest tag.
type Identity struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func User(id string) Identity { return Identity{Kind: KindUser, ID: id} }
func Guest(tag string) Identity { return Identity{Kind: KindGuest, ID: tag} }

// Durable reports whether the identity has a remote account behind it.
func (i Identity) Durable() bool {
	return i.Kind == KindUser
}

func (i Identity) IsZero() bool {
	return i.ID == ""
}

func (i Identity) String() string {
	return string(i.Kind) + ":" + i.ID
}

// Parse reverses String.
func Parse(raw string) (Identity, error) {
	kind, id, ok := strings.Cut(raw, ":")
	if !ok || id == "" {
		return Identity{}, fmt.Errorf("malformed identity %q", raw)
	}
	switch Kind(kind) {
	case KindUser, KindGuest:
		return Identity{Kind: Kind(kind), ID: id}, nil
	default:
		return Identity{}, fmt.Errorf("unknown identity kind %q", kind)
	}
}
