package database

import (
	"strings"
	"testing"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantDriver Driver
		wantDSN    string
	}{
		{"postgres", "postgres://u:p@localhost:5432/slotkeeper?sslmode=disable", DriverPostgres, "postgres://u:p@localhost:5432/slotkeeper?sslmode=disable"},
		{"postgresql", "postgresql://localhost/slotkeeper", DriverPostgres, "postgresql://localhost/slotkeeper"},
		{"sqlite relative", "sqlite://data/slotkeeper.db", DriverSQLite, "file:data/slotkeeper.db?"},
		{"sqlite absolute", "sqlite:///var/lib/slotkeeper.db", DriverSQLite, "file:/var/lib/slotkeeper.db?"},
		{"sqlite memory", "sqlite://:memory:", DriverSQLite, "file::memory:?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, err := ParseDSN(tt.url)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if driver != tt.wantDriver {
				t.Errorf("driver = %q, want %q", driver, tt.wantDriver)
			}
			if !strings.HasPrefix(dsn, tt.wantDSN) {
				t.Errorf("dsn = %q, want prefix %q", dsn, tt.wantDSN)
			}
		})
	}
}

func TestParseDSN_SQLiteEnablesForeignKeys(t *testing.T) {
	_, dsn, err := ParseDSN("sqlite://x.db")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(dsn, "foreign_keys(1)") {
		t.Errorf("sqlite dsn should enable foreign keys: %q", dsn)
	}
}

func TestParseDSN_Errors(t *testing.T) {
	for _, url := range []string{"", "mysql://localhost/db", "sqlite://", "just-a-path.db"} {
		t.Run(url, func(t *testing.T) {
			if _, _, err := ParseDSN(url); err == nil {
				t.Errorf("ParseDSN(%q) should fail", url)
			}
		})
	}
}

func TestRebind(t *testing.T) {
	query := "UPDATE platforms SET name = ?, email = ? WHERE id = ?"

	if got := DriverSQLite.Rebind(query); got != query {
		t.Errorf("sqlite rebind changed query: %q", got)
	}

	want := "UPDATE platforms SET name = $1, email = $2 WHERE id = $3"
	if got := DriverPostgres.Rebind(query); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}
