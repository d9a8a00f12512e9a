package usage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"bloodinsight/internal/config"
	"bloodinsight/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func waitForRows(t *testing.T, db *sql.DB, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM api_usage`).Scan(&count); err != nil {
			t.Fatalf("count usage: %v", err)
		}
		if count >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d usage rows", want)
}

func TestRecordPersistsEntryAsynchronously(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)

	svc.Record("/api/analyze", 7, "success", 1500*time.Millisecond)
	waitForRows(t, db, 1)

	var endpoint, status string
	var userID sql.NullInt64
	var durationMS int64
	err := db.QueryRow(
		`SELECT user_id, endpoint, status, duration_ms FROM api_usage`,
	).Scan(&userID, &endpoint, &status, &durationMS)
	if err != nil {
		t.Fatalf("scan usage: %v", err)
	}
	if !userID.Valid || userID.Int64 != 7 {
		t.Fatalf("user_id = %+v, want 7", userID)
	}
	if endpoint != "/api/analyze" || status != "success" || durationMS != 1500 {
		t.Fatalf("unexpected row: %s %s %d", endpoint, status, durationMS)
	}
}

func TestRecordStoresNullUserWhenUnknown(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)

	svc.Record("/api/upload", 0, "error", time.Millisecond)
	waitForRows(t, db, 1)

	var userID sql.NullInt64
	if err := db.QueryRow(`SELECT user_id FROM api_usage`).Scan(&userID); err != nil {
		t.Fatalf("scan usage: %v", err)
	}
	if userID.Valid {
		t.Fatalf("expected NULL user_id, got %d", userID.Int64)
	}
}

func TestStatsAggregatesByEndpoint(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)

	now := time.Now().UTC()
	entries := []struct {
		endpoint string
		duration int64
	}{
		{"/api/analyze", 100},
		{"/api/analyze", 300},
		{"/api/upload", 200},
	}
	for _, e := range entries {
		if _, err := db.Exec(
			`INSERT INTO api_usage (user_id, endpoint, status, duration_ms, created_at) VALUES (NULL, ?, 'success', ?, ?)`,
			e.endpoint, e.duration, now,
		); err != nil {
			t.Fatalf("insert usage: %v", err)
		}
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCalls != 3 {
		t.Fatalf("TotalCalls = %d, want 3", stats.TotalCalls)
	}
	if stats.AvgDurationMS != 200 {
		t.Fatalf("AvgDurationMS = %v, want 200", stats.AvgDurationMS)
	}
	if stats.ByEndpoint["/api/analyze"] != 2 || stats.ByEndpoint["/api/upload"] != 1 {
		t.Fatalf("ByEndpoint = %v", stats.ByEndpoint)
	}
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)

	now := time.Now().UTC()
	for _, endpoint := range []string{"/api/upload", "/api/analyze"} {
		if _, err := db.Exec(
			`INSERT INTO api_usage (user_id, endpoint, status, duration_ms, created_at) VALUES (NULL, ?, 'success', 10, ?)`,
			endpoint, now,
		); err != nil {
			t.Fatalf("insert usage: %v", err)
		}
	}

	entries, err := svc.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Endpoint != "/api/analyze" {
		t.Fatalf("expected newest first, got %q", entries[0].Endpoint)
	}

	limited, err := svc.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit ignored, got %d entries", len(limited))
	}
}

func TestStatsOnEmptyTable(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCalls != 0 || stats.AvgDurationMS != 0 {
		t.Fatalf("unexpected stats for empty table: %+v", stats)
	}
}
