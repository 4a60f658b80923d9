package models

import "time"

// User is an account able to sign in; only admins reach the review tools.
type User struct {
	ID             string    `db:"id" json:"id"`
	Email          string    `db:"email_address" json:"email"`
	PasswordDigest string    `db:"password_digest" json:"-"`
	Admin          bool      `db:"admin" json:"admin"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Session is a server-side login record referenced by access tokens.
type Session struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
