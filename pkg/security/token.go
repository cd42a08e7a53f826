package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const invitationTokenBytes = 24

// GenerateInvitationToken produces the opaque, URL-safe token embedded in a
// group invitation. Uniqueness is enforced by the invitations table; 192 bits
// of entropy makes collisions a non-concern in practice.
func GenerateInvitationToken() (string, error) {
	bytes := make([]byte, invitationTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
