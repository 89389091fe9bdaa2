package invoice

import "time"

// Status describes where an invoice sits in its life
type Status string

// define constants
const (
	StatusDraft Status = "draft"
	StatusSent  Status = "sent"
	StatusPaid  Status = "paid"
)

// Invoice is a bill issued to a client, assembled from unbilled time
// entries. Invoices are never deleted, so the per-user number sequence stays
// dense.
type Invoice struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	UserID        string    `json:"userId" gorm:"index;uniqueIndex:idx_invoice_user_number"`
	ClientID      string    `json:"clientId" gorm:"index"`
	Number        string    `json:"number" gorm:"uniqueIndex:idx_invoice_user_number"`
	Status        Status    `json:"status"`
	IssuedAt      time.Time `json:"issuedAt"`
	SubtotalCents int64     `json:"subtotalCents"`
	Currency      string    `json:"currency"`
	Items         []Item    `json:"items" gorm:"foreignKey:InvoiceID"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Item is a single line on an invoice, derived from one time entry
type Item struct {
	ID          string `json:"id" gorm:"primaryKey"`
	InvoiceID   string `json:"invoiceId" gorm:"index"`
	TimeEntryID string `json:"timeEntryId"`
	Description string `json:"description"`
	Minutes     int64  `json:"minutes"`
	RateCents   int64  `json:"rateCents"`
	AmountCents int64  `json:"amountCents"`
}
