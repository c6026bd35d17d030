package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiranahq/kirana-backend/pkg/migrate"
)

func TestSubscriptionsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_subscriptions.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no subscriptions migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS subscriptions",
		"CREATE TABLE IF NOT EXISTS delivery_schedules",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_triple ON subscriptions(shop_id, customer_id, product_id)",
		"FOREIGN KEY (subscription_id) REFERENCES subscriptions(id) ON DELETE CASCADE",
		"CHECK (quantity > 0)",
		"DROP TABLE IF EXISTS delivery_schedules",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
