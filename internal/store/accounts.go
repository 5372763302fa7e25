package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hireflow-engine/internal/domain"
)

const accountCols = `id, name, provider, host, port, username, encrypted_password,
automation_enabled, active, last_checked, total_processed, total_imported,
last_error, created_at, updated_at`

// CreateAccount inserts a new mail account and returns its generated id.
func (d *DB) CreateAccount(ctx context.Context, a domain.MailAccount) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO mail_accounts (id, name, provider, host, port, username, encrypted_password,
  automation_enabled, active, last_checked, total_processed, total_imported, last_error,
  created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		a.ID, a.Name, a.Provider, a.Host, a.Port, a.Username, a.EncryptedPassword,
		boolToInt(a.AutomationEnabled), boolToInt(a.Active), formatTime(a.LastChecked),
		a.TotalProcessed, a.TotalImported, a.LastError, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert account: %w", err)
	}
	return a.ID, nil
}

// GetAccount fetches one account by id. Returns (nil, nil) when absent.
func (d *DB) GetAccount(ctx context.Context, id string) (*domain.MailAccount, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM mail_accounts WHERE id = ?;`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAutomationAccounts returns every automation-enabled, active account.
func (d *DB) ListAutomationAccounts(ctx context.Context) ([]domain.MailAccount, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT `+accountCols+`
FROM mail_accounts
WHERE automation_enabled = 1 AND active = 1
ORDER BY created_at;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MailAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListAccounts returns every account, for the status endpoint.
func (d *DB) ListAccounts(ctx context.Context) ([]domain.MailAccount, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+accountCols+` FROM mail_accounts ORDER BY created_at;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MailAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateAccountFlags toggles automation participation. The controller picks
// the change up at its next discovery pass.
func (d *DB) UpdateAccountFlags(ctx context.Context, id string, automationEnabled, active bool) error {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE mail_accounts SET automation_enabled = ?, active = ?, updated_at = ? WHERE id = ?;`,
		boolToInt(automationEnabled), boolToInt(active),
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// UpdateAccountLastChecked stamps the end of a check cycle.
func (d *DB) UpdateAccountLastChecked(ctx context.Context, id string, t time.Time) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE mail_accounts SET last_checked = ?, updated_at = ? WHERE id = ?;`,
		formatTime(t), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// IncrementAccountStats bumps the cadence counters after a cycle.
func (d *DB) IncrementAccountStats(ctx context.Context, id string, processed, imported int) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE mail_accounts
SET total_processed = total_processed + ?,
    total_imported = total_imported + ?,
    updated_at = ?
WHERE id = ?;`,
		processed, imported, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// SetAccountLastError records (or clears, with "") the last cycle error.
func (d *DB) SetAccountLastError(ctx context.Context, id string, msg string) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE mail_accounts SET last_error = ?, updated_at = ? WHERE id = ?;`,
		msg, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// DeleteAccount removes an account. The caller re-evaluates the controller.
func (d *DB) DeleteAccount(ctx context.Context, id string) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM mail_accounts WHERE id = ?;`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*domain.MailAccount, error) {
	var a domain.MailAccount
	var auto, active int
	var lastChecked, createdAt, updatedAt string
	if err := r.Scan(
		&a.ID, &a.Name, &a.Provider, &a.Host, &a.Port, &a.Username, &a.EncryptedPassword,
		&auto, &active, &lastChecked, &a.TotalProcessed, &a.TotalImported,
		&a.LastError, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	a.AutomationEnabled = auto == 1
	a.Active = active == 1
	a.LastChecked = parseTime(lastChecked)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
