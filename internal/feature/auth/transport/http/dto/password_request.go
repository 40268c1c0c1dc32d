package dto

// UpdatePasswordReq represents the request body for the /update-password endpoint.
// Code is only read when the reset policy requires one.
type UpdatePasswordReq struct {
	Phone       string `json:"phone"`
	NewPassword string `json:"newPassword"`
	Code        string `json:"code"`
}

// ResetCodeReq represents the request body for the /password-reset/code endpoint.
type ResetCodeReq struct {
	Phone string `json:"phone"`
}
