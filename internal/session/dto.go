package session

import (
	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/core/common/validation"
)

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	v.Field("password", d.Password).Required()
	return v.Validate()
}

// RefreshDTO is optional; the RefreshToken cookie is used when it is empty.
type RefreshDTO struct {
	RefreshToken string `json:"refreshToken"`
}

type RequestOtpDTO struct {
	Email string `json:"email"`
}

func (d RequestOtpDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	return v.Validate()
}

type VerifyOtpDTO struct {
	Email string `json:"email"`
	Otp   string `json:"otp"`
}

func (d VerifyOtpDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	v.Field("otp", d.Otp).Required()
	return v.Validate()
}

type ResetPasswordDTO struct {
	Email       string `json:"email"`
	Otp         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (d ResetPasswordDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	v.Field("otp", d.Otp).Required()
	v.Field("newPassword", d.NewPassword).Required().MinLength(8).MaxLength(72)
	return v.Validate()
}

type OtpRequestedResponse struct {
	Message   string `json:"message"`
	ExpiresAt string `json:"expiresAt"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
