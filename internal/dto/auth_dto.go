package dto

import "github.com/mutamba/erp-backend/internal/access"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int64           `json:"expires_in"`
	User         access.Identity `json:"user"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	Region    string `json:"region,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type NavigationResponse struct {
	Role    access.Role     `json:"role"`
	Screens []access.Screen `json:"screens"`
}
