package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreditMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_credit.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no credit migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS credit_accounts",
		"CREATE TABLE IF NOT EXISTS credit_transactions",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_accounts_pair ON credit_accounts(shop_id, customer_id)",
		"FOREIGN KEY (account_id) REFERENCES credit_accounts(id) ON DELETE CASCADE",
		"CHECK (credit_score >= 0 AND credit_score <= 100)",
		"DROP TABLE IF EXISTS credit_transactions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
