package user

// User describes an account holder in SoloFlow
type User struct {
	ID    string `json:"id" gorm:"primaryKey"`
	Email string `json:"email" gorm:"uniqueIndex"`
}
