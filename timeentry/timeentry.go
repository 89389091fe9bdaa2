package timeentry

import "time"

// MaxTimerDuration is how long a running timer is allowed to accumulate.
// Stops past this point are clamped, on the assumption the user walked away.
const MaxTimerDuration = 12 * time.Hour

// TimeEntry is a block of tracked work against a project. A running timer is
// an entry whose EndedAt is nil.
type TimeEntry struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	UserID      string     `json:"userId" gorm:"index"`
	ProjectID   string     `json:"projectId" gorm:"index"`
	Description string     `json:"description"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt"`
	Minutes     int64      `json:"minutes"`
	Billed      bool       `json:"billed"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Running reports whether the entry is an open timer
func (t *TimeEntry) Running() bool {
	return t.EndedAt == nil
}
