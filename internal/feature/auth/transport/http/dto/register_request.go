package dto

// RegisterReq represents the request body for the /register endpoint.
type RegisterReq struct {
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	AuthMethod string `json:"authMethod"`
}
