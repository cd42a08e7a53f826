package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidmarceau/groupline-backend/internal/users"
	pkgAuth "github.com/davidmarceau/groupline-backend/pkg/auth"
	"github.com/davidmarceau/groupline-backend/pkg/auth/session"
	"github.com/davidmarceau/groupline-backend/pkg/config"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret-please-rotate",
	Issuer:            "groupline-test",
	ExpirationMinutes: 15,
}

// testPasswordConfig keeps argon cheap so the suite stays fast.
var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

// fakeSessionManager mirrors the redis-backed manager with an in-memory map
// keyed by access id.
type fakeSessionManager struct {
	sessions map[string]string
	revoked  []string
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{sessions: make(map[string]string)}
}

func (f *fakeSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	token := fmt.Sprintf("refresh-%s", uuid.NewString())
	f.sessions[accessID] = token
	return token, nil
}

func (f *fakeSessionManager) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.sessions, oldAccessID)
	newAccessID := session.NewAccessID()
	token := fmt.Sprintf("refresh-%s", uuid.NewString())
	f.sessions[newAccessID] = token
	return newAccessID, token, nil
}

func (f *fakeSessionManager) Revoke(_ context.Context, accessID string) error {
	delete(f.sessions, accessID)
	f.revoked = append(f.revoked, accessID)
	return nil
}

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	usersTable := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  display_name TEXT NOT NULL,
  system_role TEXT,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(usersTable).Error)
	return db
}

func newTestService(t *testing.T, db *gorm.DB) (Service, *fakeSessionManager) {
	t.Helper()
	sessions := newFakeSessionManager()
	svc, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(db),
		SessionManager: sessions,
		JWTConfig:      testJWTConfig,
		PasswordConfig: testPasswordConfig,
	})
	require.NoError(t, err)
	return svc, sessions
}

func uniqueEmail() string {
	return fmt.Sprintf("%s@example.com", uuid.NewString())
}

func TestRegisterIssuesTokens(t *testing.T) {
	db := setupAuthTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	email := uniqueEmail()
	resp, err := svc.Register(ctx, RegisterRequest{
		Email:       email,
		Password:    "correct-horse-battery",
		DisplayName: "Pat",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, email, resp.User.Email)

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.NotEmpty(t, claims.ID)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	db := setupAuthTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	local := uuid.NewString()
	resp, err := svc.Register(ctx, RegisterRequest{
		Email:       fmt.Sprintf("  %s@Example.COM ", local),
		Password:    "correct-horse-battery",
		DisplayName: "Pat",
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s@example.com", local), resp.User.Email)
}

func TestRegisterValidation(t *testing.T) {
	db := setupAuthTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing email", RegisterRequest{Password: "correct-horse-battery", DisplayName: "Pat"}},
		{"malformed email", RegisterRequest{Email: "not-an-email", Password: "correct-horse-battery", DisplayName: "Pat"}},
		{"short password", RegisterRequest{Email: uniqueEmail(), Password: "short", DisplayName: "Pat"}},
		{"missing display name", RegisterRequest{Email: uniqueEmail(), Password: "correct-horse-battery"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.req)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	db := setupAuthTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	email := uniqueEmail()
	_, err := svc.Register(ctx, RegisterRequest{Email: email, Password: "correct-horse-battery", DisplayName: "Pat"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Email: email, Password: "correct-horse-battery", DisplayName: "Sam"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestLoginRoundTrip(t *testing.T) {
	db := setupAuthTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	email := uniqueEmail()
	_, err := svc.Register(ctx, RegisterRequest{Email: email, Password: "correct-horse-battery", DisplayName: "Pat"})
	require.NoError(t, err)

	resp, err := svc.Login(ctx, LoginRequest{Email: email, Password: "correct-horse-battery"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	require.NotNil(t, resp.User.LastLoginAt)
}

func TestLoginBadCredentials(t *testing.T) {
	db := setupAuthTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	email := uniqueEmail()
	_, err := svc.Register(ctx, RegisterRequest{Email: email, Password: "correct-horse-battery", DisplayName: "Pat"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: email, Password: "wrong-password-entirely"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(ctx, LoginRequest{Email: uniqueEmail(), Password: "correct-horse-battery"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestLoginInactiveUser(t *testing.T) {
	db := setupAuthTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	email := uniqueEmail()
	_, err := svc.Register(ctx, RegisterRequest{Email: email, Password: "correct-horse-battery", DisplayName: "Pat"})
	require.NoError(t, err)

	require.NoError(t, db.Exec("UPDATE users SET is_active = FALSE WHERE email = ?", email).Error)

	_, err = svc.Login(ctx, LoginRequest{Email: email, Password: "correct-horse-battery"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshRotatesSession(t *testing.T) {
	db := setupAuthTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:       uniqueEmail(),
		Password:    "correct-horse-battery",
		DisplayName: "Pat",
	})
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, RefreshRequest{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, resp.RefreshToken, rotated.RefreshToken)

	// the old pair is burned
	_, err = svc.Refresh(ctx, RefreshRequest{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshRejectsGarbageAccessToken(t *testing.T) {
	db := setupAuthTestDB(t)
	svc, _ := newTestService(t, db)

	_, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  "not-a-jwt",
		RefreshToken: "whatever",
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestLogoutRevokesSession(t *testing.T) {
	db := setupAuthTestDB(t)
	svc, sessions := newTestService(t, db)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:       uniqueEmail(),
		Password:    "correct-horse-battery",
		DisplayName: "Pat",
	})
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims.ID))
	assert.Contains(t, sessions.revoked, claims.ID)

	err = svc.Logout(ctx, "  ")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}
