/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package listenerlog persists a durable audit trail of job and subscriber
// lifecycle events to a local sqlite database. The events it records are
// optional: nothing in the streaming core reads them back, they exist for
// operator troubleshooting after the fact.
package listenerlog

import "time"

// JobEvent is one row in the job lifecycle audit trail: a job's creation,
// transition to running, and finish.
type JobEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JobID     string    `gorm:"index;not null" json:"job_id"`
	QueueID   string    `gorm:"index;not null" json:"queue_id"`
	EventType string    `gorm:"not null" json:"event_type"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (JobEvent) TableName() string {
	return "listenerlog_job_events"
}

// SubscriberEvent is one row in the subscriber lifecycle audit trail: a
// player joining, leaving, or late-joining a multi-client job.
type SubscriberEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JobID     string    `gorm:"index;not null" json:"job_id"`
	PlayerID  string    `gorm:"index;not null" json:"player_id"`
	EventType string    `gorm:"not null" json:"event_type"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (SubscriberEvent) TableName() string {
	return "listenerlog_subscriber_events"
}
