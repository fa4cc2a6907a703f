//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestTestDB_Connection(t *testing.T) {
	testDB := GetTestDB(t)

	var version string
	err := testDB.Pool.QueryRow(context.Background(), "SHOW server_version").Scan(&version)
	if err != nil {
		t.Fatalf("failed to query server version: %v", err)
	}
	if version == "" {
		t.Error("expected a server version")
	}
}
