package feedback

import (
	"context"
	"database/sql"
	"errors"
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

func insertTestUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO users (email, name, password_hash, is_admin, created_at) VALUES (?, '', '', 0, ?)`,
		email, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("user id: %v", err)
	}
	return id
}

func TestCreateDefaultsStatusToNew(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	userID := insertTestUser(t, db, "alice@example.com")

	item, err := svc.Create(context.Background(), userID, "Love the trends page", "Feature", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Status != "New" {
		t.Fatalf("status = %q, want New", item.Status)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, 0, "msg", "Bug", ""); err == nil {
		t.Fatalf("expected error for missing user")
	}
	if _, err := svc.Create(ctx, 1, "  ", "Bug", ""); err == nil {
		t.Fatalf("expected error for blank message")
	}
	if _, err := svc.Create(ctx, 1, "msg", "", ""); err == nil {
		t.Fatalf("expected error for blank category")
	}
}

func TestListIncludesSubmitterEmailNewestFirst(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()
	userID := insertTestUser(t, db, "carol@example.com")

	first, err := svc.Create(ctx, userID, "older", "Bug", "")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	// force distinct timestamps so ordering is deterministic
	if _, err := db.Exec(`UPDATE feedback SET created_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Hour), first.ID); err != nil {
		t.Fatalf("backdate first: %v", err)
	}
	if _, err := svc.Create(ctx, userID, "newer", "Bug", ""); err != nil {
		t.Fatalf("create second: %v", err)
	}

	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Message != "newer" {
		t.Fatalf("expected newest first, got %q", items[0].Message)
	}
	if items[0].UserEmail != "carol@example.com" {
		t.Fatalf("expected submitter email, got %q", items[0].UserEmail)
	}
}

func TestUpdateKeepsUnspecifiedFields(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()
	userID := insertTestUser(t, db, "dave@example.com")

	item, err := svc.Create(ctx, userID, "original message", "Bug", "New")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	updated, err := svc.Update(ctx, item.ID, "", "", "Resolved")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != "Resolved" {
		t.Fatalf("status = %q, want Resolved", updated.Status)
	}
	if updated.Message != "original message" || updated.Category != "Bug" {
		t.Fatalf("unspecified fields changed: %+v", updated)
	}
}

func TestUpdateAndDeleteMissingRow(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Update(ctx, 42, "x", "", ""); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("Update missing: expected sql.ErrNoRows, got %v", err)
	}
	if err := svc.Delete(ctx, 42); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("Delete missing: expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()
	userID := insertTestUser(t, db, "erin@example.com")

	item, err := svc.Create(ctx, userID, "to delete", "Other", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, item.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty list, got %d items", len(items))
	}
}
