package policy

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	dbtypes "github.com/davidmarceau/groupline-backend/pkg/db/types"
)

// TokenKind distinguishes role keywords from concrete user ids inside an
// allow-list.
type TokenKind string

const (
	TokenKindRole TokenKind = "role"
	TokenKindUser TokenKind = "user"
)

const (
	RoleTokenAnonymous = "anonymous"
	RoleTokenUser      = "user"
	RoleTokenAdmin     = "admin"
	RoleTokenOwner     = "owner"
)

var roleTokens = map[string]struct{}{
	RoleTokenAnonymous: {},
	RoleTokenUser:      {},
	RoleTokenAdmin:     {},
	RoleTokenOwner:     {},
}

// Token is a parsed allow-list entry: either a role keyword or a user id.
type Token struct {
	Kind   TokenKind
	Role   string
	UserID uuid.UUID
}

// ParseToken parses a raw allow-list entry. UUIDs become user tokens, known
// keywords become role tokens, anything else is rejected.
func ParseToken(raw string) (Token, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return Token{}, fmt.Errorf("empty allow-list token")
	}
	if id, err := uuid.Parse(value); err == nil {
		return Token{Kind: TokenKindUser, UserID: id}, nil
	}
	if _, ok := roleTokens[value]; ok {
		return Token{Kind: TokenKindRole, Role: value}, nil
	}
	return Token{}, fmt.Errorf("unrecognized allow-list token %q", raw)
}

// ParseAllowList parses every entry, failing on the first invalid one.
func ParseAllowList(raw dbtypes.StringSet) ([]Token, error) {
	tokens := make([]Token, 0, len(raw))
	for _, entry := range raw {
		token, err := ParseToken(entry)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// Matches reports whether the token grants access to the given actor. Unknown
// entries in stored data are skipped rather than granting anything.
func (t Token) Matches(actor Actor) bool {
	switch t.Kind {
	case TokenKindUser:
		return !actor.IsAnonymous() && t.UserID == actor.ID
	case TokenKindRole:
		switch t.Role {
		case RoleTokenAnonymous:
			return true
		case RoleTokenUser:
			return !actor.IsAnonymous()
		case RoleTokenAdmin:
			return actor.IsPlatformAdmin()
		default:
			return false
		}
	default:
		return false
	}
}

// listAllows reports whether any entry of a stored allow-list matches the
// actor. Malformed entries are ignored.
func listAllows(raw dbtypes.StringSet, actor Actor) bool {
	for _, entry := range raw {
		token, err := ParseToken(entry)
		if err != nil {
			continue
		}
		if token.Matches(actor) {
			return true
		}
	}
	return false
}
