package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Coupon Scopes!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_coupon_scopes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- +goose Down") {
		t.Fatalf("template missing goose markers:\n%s", body)
	}

	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration must validate: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	t.Parallel()

	if _, err := CreateSQLMigration(t.TempDir(), "!!!"); err == nil {
		t.Fatal("expected an error for a name with no usable characters")
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "0001_short_version.sql")
	if err := os.WriteFile(bad, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected an error for a non-timestamp version")
	}
}
