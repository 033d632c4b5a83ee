package domain

import (
	"fmt"
	"time"
)

type LifecycleState string

const (
	LifecycleActive   LifecycleState = "active"
	LifecycleArchived LifecycleState = "archived"
)

// Lifecycle replaces soft-delete flags. Archive and Restore are the only
// ways to move between the two states.
type Lifecycle struct {
	State      LifecycleState `gorm:"column:lifecycle_state;type:varchar(16);not null;default:active;index" json:"lifecycle_state"`
	ArchivedAt *time.Time     `gorm:"column:archived_at" json:"archived_at,omitempty"`
	ArchivedBy *uint          `gorm:"column:archived_by" json:"archived_by,omitempty"`
}

func ActiveLifecycle() Lifecycle {
	return Lifecycle{State: LifecycleActive}
}

func (l Lifecycle) IsActive() bool {
	return l.State == LifecycleActive || l.State == ""
}

func (l *Lifecycle) Archive(by uint, at time.Time) error {
	if !l.IsActive() {
		return fmt.Errorf("%w: already archived", ErrConflict)
	}
	l.State = LifecycleArchived
	l.ArchivedAt = &at
	l.ArchivedBy = &by
	return nil
}

func (l *Lifecycle) Restore() error {
	if l.IsActive() {
		return fmt.Errorf("%w: not archived", ErrConflict)
	}
	l.State = LifecycleActive
	l.ArchivedAt = nil
	l.ArchivedBy = nil
	return nil
}
