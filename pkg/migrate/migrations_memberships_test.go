package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMembershipMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_group_memberships.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no membership migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS group_memberships",
		"FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE",
		"CHECK (status IN ('request', 'approved', 'denied', 'kicked', 'banned', 'left'))",
		"CHECK (role IN ('owner', 'admin', 'member'))",
		"WHERE status IN ('request', 'approved')",
		"DROP TABLE IF EXISTS group_memberships",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInvitationMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_group_invitations.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no invitation migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS group_invitations",
		"token TEXT NOT NULL UNIQUE",
		"CHECK (status IN ('pending', 'accepted', 'revoked', 'expired'))",
		"DROP TABLE IF EXISTS group_invitations",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
