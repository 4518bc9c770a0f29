package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"portfoliogo/internal/config"
)

// Service issues, validates, and revokes admin authentication tokens. The
// portfolio has a single owner, so credentials come from config rather than
// a user table.
type Service struct {
	db           *sql.DB
	tokenTTL     time.Duration
	username     string
	passwordHash string
	headerName   string
}

// NewService constructs an auth service from the admin config block.
func NewService(db *sql.DB, adminCfg config.AdminConfig) *Service {
	ttl := time.Duration(adminCfg.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		db:           db,
		tokenTTL:     ttl,
		username:     adminCfg.Username,
		passwordHash: hashPassword(adminCfg.Password),
		headerName:   "Authorization",
	}
}

// Login checks the credential pair and mints a token on success.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(hashPassword(password)), []byte(s.passwordHash)) == 1
	if !userOK || !passOK {
		return "", errors.New("invalid credentials")
	}
	return s.issueToken(ctx)
}

func (s *Service) issueToken(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return "", err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO admin_tokens (token, created_at, expires_at) VALUES (?, ?, ?)`,
			token, now, expiresAt,
		)
		if err == nil {
			return token, nil
		}
	}
	return "", errors.New("could not issue token")
}

// ValidateToken verifies the token exists and has not expired.
func (s *Service) ValidateToken(ctx context.Context, authToken string) error {
	if authToken == "" {
		return errors.New("token required")
	}
	var expires time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM admin_tokens WHERE token = ?`, authToken,
	).Scan(&expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.New("invalid token")
		}
		return fmt.Errorf("lookup token: %w", err)
	}
	if time.Now().UTC().After(expires) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM admin_tokens WHERE token = ?`, authToken)
		return errors.New("token expired")
	}
	return nil
}

// RevokeToken deletes a single token.
func (s *Service) RevokeToken(ctx context.Context, authToken string) error {
	if authToken == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM admin_tokens WHERE token = ?`, authToken); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
