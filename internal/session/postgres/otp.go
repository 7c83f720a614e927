package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sessionDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/session"
	"github.com/jmoiron/sqlx"
)

// OTPRepository keeps password reset codes in plain SQL; consuming a code is
// a single conditional UPDATE.
type OTPRepository struct {
	db *sqlx.DB
}

func NewOTPRepository(db *sqlx.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

func (r *OTPRepository) Create(ctx context.Context, otp *sessionDatamodel.PasswordResetOtp) error {
	query := `INSERT INTO password_reset_otps (id, email, otp, expires_at, used, created_at)
VALUES (:id, :email, :otp, :expires_at, :used, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, otp); err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

func (r *OTPRepository) FindUnused(ctx context.Context, email, code string) (*sessionDatamodel.PasswordResetOtp, error) {
	query := r.db.Rebind(`SELECT id, email, otp, expires_at, used, created_at
FROM password_reset_otps
WHERE email = ? AND otp = ? AND used = false
ORDER BY created_at DESC
LIMIT 1`)

	var otp sessionDatamodel.PasswordResetOtp
	if err := r.db.GetContext(ctx, &otp, query, email, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find otp: %w", err)
	}
	return &otp, nil
}

func (r *OTPRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	query := r.db.Rebind(`UPDATE password_reset_otps SET used = true WHERE id = ? AND used = false`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark otp used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark otp used: %w", err)
	}
	return n == 1, nil
}
