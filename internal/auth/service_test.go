package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"portfoliogo/internal/config"
	"portfoliogo/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func TestLoginIssueValidateRevoke(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, config.AdminConfig{Username: "admin", Password: "secret"})
	ctx := context.Background()

	token, err := svc.Login(ctx, "admin", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	if err := svc.ValidateToken(ctx, token); err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("expected error after revoke")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, config.AdminConfig{Username: "admin", Password: "secret"})
	ctx := context.Background()

	if _, err := svc.Login(ctx, "admin", "wrong"); err == nil {
		t.Fatalf("expected error for wrong password")
	}
	if _, err := svc.Login(ctx, "someone", "secret"); err == nil {
		t.Fatalf("expected error for wrong username")
	}
}

func TestValidateExpiredTokenPurges(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, config.AdminConfig{Username: "admin", Password: "secret"})
	svc.tokenTTL = -time.Minute
	ctx := context.Background()

	token, err := svc.Login(ctx, "admin", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("expected expiration error")
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM admin_tokens WHERE token = ?`, token).Scan(&count); err != nil {
		t.Fatalf("query tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired token not purged")
	}
}

func TestValidateEmptyToken(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, config.AdminConfig{Username: "admin", Password: "secret"})
	if err := svc.ValidateToken(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty token")
	}
}
