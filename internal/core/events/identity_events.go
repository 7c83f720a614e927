package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeOtpRequested    = "auth.otp_requested"
	EventTypePasswordReset   = "auth.password_reset"
	EventTypeRoleChanged     = "rbac.role_changed"
	EventTypeRolesAssigned   = "rbac.roles_assigned"
	EventTypeUserLoggedIn    = "auth.user_logged_in"
	EventTypeRefreshRejected = "auth.refresh_rejected"
)

// OtpRequestedEvent carries the code to the mailer. Data omits the code so
// the bus never logs it.
type OtpRequestedEvent struct {
	BaseEvent
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewOtpRequestedEvent(email, code string, expiresAt time.Time) *OtpRequestedEvent {
	return &OtpRequestedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypeOtpRequested,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"email":      email,
				"expires_at": expiresAt,
			},
		},
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
	}
}

type PasswordResetEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func NewPasswordResetEvent(userID, email string) *PasswordResetEvent {
	return &PasswordResetEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypePasswordReset,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
				"email":   email,
			},
		},
		UserID: userID,
		Email:  email,
	}
}

type RoleChangedEvent struct {
	BaseEvent
	RoleID string `json:"role_id"`
	Change string `json:"change"`
}

func NewRoleChangedEvent(roleID, change string) *RoleChangedEvent {
	return &RoleChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypeRoleChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"role_id": roleID,
				"change":  change,
			},
		},
		RoleID: roleID,
		Change: change,
	}
}

type RolesAssignedEvent struct {
	BaseEvent
	UserID  string   `json:"user_id"`
	RoleIDs []string `json:"role_ids"`
}

func NewRolesAssignedEvent(userID string, roleIDs []string) *RolesAssignedEvent {
	return &RolesAssignedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypeRolesAssigned,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":  userID,
				"role_ids": roleIDs,
			},
		},
		UserID:  userID,
		RoleIDs: roleIDs,
	}
}

type UserLoggedInEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Method string `json:"method"`
}

func NewUserLoggedInEvent(userID, method string) *UserLoggedInEvent {
	return &UserLoggedInEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypeUserLoggedIn,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
				"method":  method,
			},
		},
		UserID: userID,
		Method: method,
	}
}

// RefreshRejectedEvent is raised when a refresh token loses the rotation
// race or is replayed after rotation.
type RefreshRejectedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

func NewRefreshRejectedEvent(userID string) *RefreshRejectedEvent {
	return &RefreshRejectedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypeRefreshRejected,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
			},
		},
		UserID: userID,
	}
}
