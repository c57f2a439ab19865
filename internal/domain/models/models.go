package models

import "time"

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
}

type SignupRequest struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Password string `json:"password" validate:"required,min=4,max=72"`
}

type SigninRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=100"`
}

type SigninResponse struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Task struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Deadline  time.Time `json:"deadline"`
	OwnerID   int64     `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

type AddTaskRequest struct {
	Name     string    `json:"name"`
	Deadline time.Time `json:"deadline"`
}

type Photo struct {
	ID          string    `json:"id"`
	TaskID      int64     `json:"taskId"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HomeItem is the per-task row of a user's home listing.
type HomeItem struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Deadline            time.Time `json:"deadline"`
	PercentageTimeSpent int       `json:"percentageTimeSpent"`
	PhotoID             string    `json:"photoId,omitempty"`
	Done                bool      `json:"done"`
}
