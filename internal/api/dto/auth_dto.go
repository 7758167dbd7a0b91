package dto

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest payload for account creation. BirthDate uses YYYY-MM-DD.
type RegisterRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	BirthDate  string `json:"birth_date,omitempty"`
	Phone      string `json:"phone"`
	NationalID string `json:"national_id"`
}
