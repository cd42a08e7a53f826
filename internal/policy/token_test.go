package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtypes "github.com/davidmarceau/groupline-backend/pkg/db/types"
)

func TestParseTokenRoleKeywords(t *testing.T) {
	for _, keyword := range []string{"anonymous", "user", "admin", "owner"} {
		token, err := ParseToken(keyword)
		require.NoError(t, err, keyword)
		assert.Equal(t, TokenKindRole, token.Kind)
		assert.Equal(t, keyword, token.Role)
	}
}

func TestParseTokenUserID(t *testing.T) {
	id := uuid.New()
	token, err := ParseToken(id.String())
	require.NoError(t, err)
	assert.Equal(t, TokenKindUser, token.Kind)
	assert.Equal(t, id, token.UserID)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("superuser")
	assert.Error(t, err)

	_, err = ParseToken("")
	assert.Error(t, err)
}

func TestParseAllowListFailsOnFirstInvalid(t *testing.T) {
	_, err := ParseAllowList(dbtypes.StringSet{"user", "not-a-token"})
	assert.Error(t, err)

	tokens, err := ParseAllowList(dbtypes.StringSet{"user", uuid.NewString()})
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestTokenMatching(t *testing.T) {
	userID := uuid.New()
	actor := User(userID)
	anon := Anonymous()
	staff := Admin(uuid.New())

	cases := []struct {
		name  string
		raw   string
		actor Actor
		want  bool
	}{
		{"anonymous token matches everyone", "anonymous", anon, true},
		{"user token rejects anonymous", "user", anon, false},
		{"user token matches authenticated", "user", actor, true},
		{"admin token rejects plain user", "admin", actor, false},
		{"admin token matches staff", "admin", staff, true},
		{"id token matches same user", userID.String(), actor, true},
		{"id token rejects other user", uuid.NewString(), actor, false},
		{"id token rejects anonymous", userID.String(), anon, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := ParseToken(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, token.Matches(tc.actor))
		})
	}
}

func TestListAllowsSkipsMalformedEntries(t *testing.T) {
	actor := User(uuid.New())
	assert.True(t, listAllows(dbtypes.StringSet{"bogus", "user"}, actor))
	assert.False(t, listAllows(dbtypes.StringSet{"bogus"}, actor))
	assert.False(t, listAllows(nil, actor))
}
