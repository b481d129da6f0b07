package task

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("task not found")

type Task struct {
	ID             int64      `json:"id"`
	ProjectID      int64      `json:"projectId"`
	UserID         int64      `json:"-"`
	Name           string     `json:"name"`
	EstimatedHours float64    `json:"estimatedHours"`
	Completed      bool       `json:"completed"`
	SortOrder      int        `json:"order"`
	Date           *time.Time `json:"date,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type CreateTaskRequest struct {
	Name string `json:"name" binding:"required,max=200"`
	// defaults to 1 when omitted
	EstimatedHours *float64 `json:"estimatedHours" binding:"omitempty,gte=0"`
	Completed      bool     `json:"completed"`
	Order          int      `json:"order"`
	Date           string   `json:"date" binding:"omitempty,datetime=2006-01-02"`
}

type UpdateTaskRequest = CreateTaskRequest

type ReorderItem struct {
	ID    int64 `json:"id" binding:"required"`
	Order int   `json:"order"`
}

type ReorderRequest struct {
	Items []ReorderItem `json:"items" binding:"required,min=1,dive"`
}
