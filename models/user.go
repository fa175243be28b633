package models

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Operator is the single configured account allowed to read the reporting views.
type Operator struct {
	Email          string `json:"email"`
	HashedPassword []byte `json:"-"`
}
