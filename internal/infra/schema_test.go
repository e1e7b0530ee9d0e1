package infra

import (
	"strings"
	"testing"
)

func TestSchemaDeclaresLedgerInvariants(t *testing.T) {
	ddl := Schema()
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS users",
		"CREATE TABLE IF NOT EXISTS wallets",
		"CREATE TABLE IF NOT EXISTS campaigns",
		"CREATE TABLE IF NOT EXISTS wallet_transactions",
		"NOT NULL UNIQUE REFERENCES users (id)",
		"CHECK (balance_pence >= 0)",
		"CHECK (balance_pence = total_loaded_pence - total_spent_pence)",
		"CHECK (target_pence >= 100)",
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
	if strings.Contains(strings.ToUpper(ddl), "DROP ") {
		t.Fatalf("bootstrap schema must not drop objects")
	}
}
