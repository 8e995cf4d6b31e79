package dto

import "github.com/noah-isme/curriculum-api/internal/models"

// CreateFrameworkRequest creates a framework and its initial draft version.
type CreateFrameworkRequest struct {
	Code        string  `json:"code" validate:"required,max=64"`
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// FrameworkDetail bundles a framework with its latest version.
type FrameworkDetail struct {
	models.Framework
	LatestVersion *models.Version `json:"latest_version,omitempty"`
}
