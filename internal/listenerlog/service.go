/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package listenerlog

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ripplehome/streamcore/internal/events"
)

// Service subscribes to the streaming core's event bus and persists job and
// subscriber lifecycle transitions for later inspection.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService constructs a listener log service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "listenerlog").Logger(),
	}
}

// Run subscribes to the job and subscriber event types and persists each one
// as it arrives, until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	jobCreated := s.bus.Subscribe(events.EventJobCreated)
	jobRunning := s.bus.Subscribe(events.EventJobRunning)
	jobFinished := s.bus.Subscribe(events.EventJobFinished)
	subJoined := s.bus.Subscribe(events.EventSubscriberJoined)
	subLeft := s.bus.Subscribe(events.EventSubscriberLeft)
	subLate := s.bus.Subscribe(events.EventSubscriberLate)

	defer func() {
		s.bus.Unsubscribe(events.EventJobCreated, jobCreated)
		s.bus.Unsubscribe(events.EventJobRunning, jobRunning)
		s.bus.Unsubscribe(events.EventJobFinished, jobFinished)
		s.bus.Unsubscribe(events.EventSubscriberJoined, subJoined)
		s.bus.Unsubscribe(events.EventSubscriberLeft, subLeft)
		s.bus.Unsubscribe(events.EventSubscriberLate, subLate)
	}()

	s.logger.Info().Msg("listener log started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("listener log stopping")
			return

		case payload := <-jobCreated:
			s.logJobEvent(string(events.EventJobCreated), payload)
		case payload := <-jobRunning:
			s.logJobEvent(string(events.EventJobRunning), payload)
		case payload := <-jobFinished:
			s.logJobEvent(string(events.EventJobFinished), payload)

		case payload := <-subJoined:
			s.logSubscriberEvent(string(events.EventSubscriberJoined), payload)
		case payload := <-subLeft:
			s.logSubscriberEvent(string(events.EventSubscriberLeft), payload)
		case payload := <-subLate:
			s.logSubscriberEvent(string(events.EventSubscriberLate), payload)
		}
	}
}

func (s *Service) logJobEvent(eventType string, payload events.Payload) {
	entry := JobEvent{EventType: eventType}
	if v, ok := payload["job_id"].(string); ok {
		entry.JobID = v
	}
	if v, ok := payload["queue_id"].(string); ok {
		entry.QueueID = v
	}
	if err := s.db.Create(&entry).Error; err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to log job event")
	}
}

func (s *Service) logSubscriberEvent(eventType string, payload events.Payload) {
	entry := SubscriberEvent{EventType: eventType}
	if v, ok := payload["job_id"].(string); ok {
		entry.JobID = v
	}
	if v, ok := payload["player_id"].(string); ok {
		entry.PlayerID = v
	}
	if err := s.db.Create(&entry).Error; err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to log subscriber event")
	}
}
