package client

import "time"

// Client describes one of a freelancer's paying clients. Clients are scoped
// to the owning user and never shared.
type Client struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"userId" gorm:"index"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Company         string    `json:"company"`
	HourlyRateCents int64     `json:"hourlyRateCents"`
	Currency        string    `json:"currency"`
	Notes           string    `json:"notes"`
	Archived        bool      `json:"archived"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
