package handler

import "github.com/99minutos/auth-system/internal/core/domain"

type updateMeRequest struct {
	Name      *string `json:"name"      validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email"     validate:"omitempty,email"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,url"`
}

func (r updateMeRequest) toUpdate() domain.ProfileUpdate {
	return domain.ProfileUpdate{Name: r.Name, Email: r.Email, AvatarURL: r.AvatarURL}
}

type adminUpdateRequest struct {
	Name  *string `json:"name"  validate:"omitempty,min=1,max=100"`
	Email *string `json:"email" validate:"omitempty,email"`
	Role  *string `json:"role"  validate:"omitempty,oneof=user admin"`
}

func (r adminUpdateRequest) toUpdate() domain.ProfileUpdate {
	u := domain.ProfileUpdate{Name: r.Name, Email: r.Email}
	if r.Role != nil {
		role := domain.Role(*r.Role)
		u.Role = &role
	}
	return u
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type listUsersQuery struct {
	Page  int `query:"page"  validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

type listUsersResponse struct {
	Data       []identityResponse `json:"data"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"totalPages"`
}
