package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/davitr/userhub-be/internal/models"
	ws "github.com/davitr/userhub-be/internal/websocket"
)

// EventServiceProvider defines the interface for audit event services.
type EventServiceProvider interface {
	Record(ctx context.Context, eventType, level, message string, userID *int64) error
	RecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventService records audit events for account actions and pushes them
// to connected websocket clients.
type EventService struct {
	db  *sql.DB
	hub *ws.Hub
}

// NewEventService creates a new EventService. The hub may be nil, in
// which case events are only persisted.
func NewEventService(db *sql.DB, hub *ws.Hub) *EventService {
	return &EventService{db: db, hub: hub}
}

// Record logs a new audit event to the database and broadcasts it.
func (s *EventService) Record(ctx context.Context, eventType, level, message string, userID *int64) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, type, level, message, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		event.ID, event.Type, event.Level, event.Message, event.UserID, event.CreatedAt)
	if err != nil {
		return err
	}

	if s.hub != nil {
		payload, err := json.Marshal(ws.Message{Action: "audit_event", Payload: event})
		if err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to encode audit event for broadcast")
			return nil
		}
		s.hub.Broadcast <- payload
	}
	return nil
}

// RecentEvents retrieves the most recent audit events.
func (s *EventService) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, level, message, user_id, created_at FROM events ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		var userID sql.NullInt64
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &userID, &event.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			event.UserID = &userID.Int64
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// PruneOlderThan deletes audit events created before the cutoff and
// returns how many were removed.
func (s *EventService) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
