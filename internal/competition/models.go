package competition

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusUpcoming   Status = "upcoming"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusUpcoming, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusUpcoming:
		return "Upcoming"
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown competition status %q", s)
	}
	return status, nil
}

type Competition struct {
	ID          string     `json:"id"`
	CommunityID string     `json:"community_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (c *Competition) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("competition %s has no name", c.ID)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("competition %s has invalid status %q", c.ID, c.Status)
	}
	return nil
}

type CreateInput struct {
	CommunityID string     `json:"community_id" validate:"required"`
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	StartDate   time.Time  `json:"start_date" validate:"required"`
	EndDate     *time.Time `json:"end_date"`
}
