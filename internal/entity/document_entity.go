package entity

import (
	"time"

	"github.com/google/uuid"
)

type RefreshFrequency string

const (
	RefreshNone    RefreshFrequency = "none"
	RefreshDaily   RefreshFrequency = "daily"
	RefreshWeekly  RefreshFrequency = "weekly"
	RefreshMonthly RefreshFrequency = "monthly"
)

// Interval returns how long a document may go without a new snapshot. Zero
// means never refresh.
func (f RefreshFrequency) Interval() time.Duration {
	switch f {
	case RefreshDaily:
		return 24 * time.Hour
	case RefreshWeekly:
		return 7 * 24 * time.Hour
	case RefreshMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

type Document struct {
	Id               uuid.UUID
	ProjectId        uuid.UUID
	OrgId            string
	Folder           string // always starts and ends with "/"
	Name             string
	RefreshFrequency RefreshFrequency
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}
