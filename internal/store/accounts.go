package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateAccount inserts a new account and returns it with its generated ID.
func (s *Store) CreateAccount(ctx context.Context, email, name string, telegramChatID int64) (*Account, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account id: %w", err)
	}

	account := &Account{
		ID:             id,
		Email:          email,
		Name:           name,
		TelegramChatID: telegramChatID,
		CreatedAt:      time.Now().UTC(),
	}

	var emailVal any
	if email != "" {
		emailVal = email
	}
	var chatVal any
	if telegramChatID != 0 {
		chatVal = telegramChatID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, name, telegram_chat_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, account.ID, emailVal, account.Name, chatVal, account.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, telegram_chat_id, created_at
		FROM accounts WHERE id = ?
	`, id)
	return scanAccount(row)
}

// FindAccountByEmail retrieves an account by email, or ErrNotFound.
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, telegram_chat_id, created_at
		FROM accounts WHERE email = ?
	`, email)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*Account, error) {
	var account Account
	var email sql.NullString
	var chatID sql.NullInt64

	err := row.Scan(&account.ID, &email, &account.Name, &chatID, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if email.Valid {
		account.Email = email.String
	}
	if chatID.Valid {
		account.TelegramChatID = chatID.Int64
	}

	return &account, nil
}
