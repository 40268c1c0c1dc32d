package dto

// VerifyReq represents the request body for the /verify endpoint.
type VerifyReq struct {
	AccountID string `json:"accountId"`
	Code      string `json:"code"`
}

// ResendReq represents the request body for the /resend-code endpoint.
type ResendReq struct {
	AccountID string `json:"accountId"`
}
