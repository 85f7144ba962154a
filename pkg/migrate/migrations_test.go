package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Migrations(), "migrations"); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	onDisk, _ := filepath.Glob(filepath.Join("migrations", "*.sql"))
	embedded, err := fs.Glob(migrate.Migrations(), "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) != len(embedded) {
		t.Fatalf("expected %d embedded migrations, got %d", len(onDisk), len(embedded))
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "  Add Vendor Notes! ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_vendor_notes.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration invalid: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatalf("expected error for empty sanitized name")
	}
}

func TestGroupsMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_groups"), []string{
		"CREATE TABLE IF NOT EXISTS groups",
		"CHECK (max_participants BETWEEN 2 AND 10)",
		"CHECK (current_participants >= 1 AND current_participants <= max_participants)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_participants_group_user ON participants (group_id, user_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_invitees_join_token_digest",
		"CHECK (end_date = start_date + 6)",
		"DROP TABLE IF EXISTS groups",
	})
}

func TestPaymentRequestsMigrationKeepsOneActiveBatch(t *testing.T) {
	assertContains(t, readMigration(t, "create_payment_requests"), []string{
		"ON payment_request_batches (group_id)\n  WHERE superseded_at IS NULL",
		"CHECK (amount_cents > 0)",
		"CHECK ((status = 'paid') = (paid_at IS NOT NULL))",
		"DROP TABLE IF EXISTS payment_request_batches",
	})
}

func TestInstrumentMigrationIsOnePerGroup(t *testing.T) {
	assertContains(t, readMigration(t, "create_disbursement_instruments"), []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_disbursement_instruments_group_id ON disbursement_instruments (group_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_instrument_transactions_gateway_transaction_id",
		"DROP TABLE IF EXISTS instrument_transactions",
	})
}
