package project

import "time"

// Status describes where a project sits in its life
type Status string

// define constants
const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Project is a body of work done for a single client
type Project struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"userId" gorm:"index"`
	ClientID    string    `json:"clientId" gorm:"index"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskStatus describes a task's progress
type TaskStatus string

// define constants
const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Task is a unit of work inside a project
type Task struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	ProjectID string     `json:"projectId" gorm:"index"`
	UserID    string     `json:"userId" gorm:"index"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	DueDate   *time.Time `json:"dueDate"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
