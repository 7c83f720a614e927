package session

import "time"

// PasswordResetOtp is read and written through sqlx, hence db tags.
type PasswordResetOtp struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Otp       string    `db:"otp"`
	ExpiresAt time.Time `db:"expires_at"`
	Used      bool      `db:"used"`
	CreatedAt time.Time `db:"created_at"`
}
