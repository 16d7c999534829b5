package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-while/go-redsocial/internal/models"
)

// --- Account Queries ---

const query_SelectAccounts = `SELECT id, email, display_name, password_digest, created_at FROM accounts`

// FindAccounts returns every account matching the set fields of c, ordered by id.
// A zero Criteria returns all accounts. A digest is only matched together with
// an email, a digest-only lookup fails with ErrIncompleteCriteria.
func (db *Database) FindAccounts(ctx context.Context, c models.Criteria) ([]*models.Account, error) {
	if c.PasswordDigest != "" && c.Email == "" {
		return nil, ErrIncompleteCriteria
	}

	query := query_SelectAccounts
	var args []interface{}
	if !c.IsZero() {
		var where []string
		if c.Email != "" {
			where = append(where, "email = ?")
			args = append(args, c.Email)
		}
		if c.PasswordDigest != "" {
			where = append(where, "password_digest = ?")
			args = append(args, c.PasswordDigest)
		}
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := db.retryableQuery(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find accounts: %w", err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

const query_CountAccounts = `SELECT COUNT(*) FROM accounts`

// CountAccounts returns the total number of accounts
func (db *Database) CountAccounts(ctx context.Context) (int, error) {
	var total int
	if err := db.retryableQueryRowScan(ctx, query_CountAccounts, nil, &total); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return total, nil
}

const query_GetAccountsPage = `SELECT id, email, display_name, password_digest, created_at FROM accounts ORDER BY id LIMIT ? OFFSET ?`

// FindAccountsPage returns the accounts of page (1-based, models.AccountsPerPage
// per page) together with the total number of accounts.
func (db *Database) FindAccountsPage(ctx context.Context, page int) ([]*models.Account, int, error) {
	if page < 1 || page > models.MaxPage {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	total, err := db.CountAccounts(ctx)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * models.AccountsPerPage
	rows, err := db.retryableQuery(ctx, query_GetAccountsPage, models.AccountsPerPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get accounts page %d: %w", page, err)
	}
	defer rows.Close()

	accounts, err := scanAccounts(rows)
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

const query_InsertAccount = `INSERT INTO accounts (email, display_name, password_digest) VALUES (?, ?, ?)`

// InsertAccount stores a and returns its new id. a.ID is set on success.
// A second account with the same email fails with ErrDuplicateEmail, an
// empty email with ErrEmptyEmail.
func (db *Database) InsertAccount(ctx context.Context, a *models.Account) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("nil account")
	}
	if a.Email == "" {
		return 0, ErrEmptyEmail
	}
	res, err := db.retryableExec(ctx, query_InsertAccount, a.Email, a.DisplayName, a.PasswordDigest)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateEmail
		}
		return 0, fmt.Errorf("failed to insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read account id: %w", err)
	}
	if id <= 0 {
		return 0, ErrNoID
	}
	a.ID = id
	return id, nil
}

func scanAccounts(rows *sql.Rows) ([]*models.Account, error) {
	var out []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordDigest, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
