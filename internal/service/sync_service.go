package service

import (
	"context"
	"encoding/json"

	"lupa-be/internal/pkg/logger"
	"lupa-be/pkg/events"

	"github.com/google/uuid"
)

const syncModule = "SYNC"

// Room delivers raw messages to the live connections of a project.
type Room interface {
	Deliver(ctx context.Context, projectID uuid.UUID, data []byte)
}

// SyncService forwards domain events to websocket subscribers of the owning
// project. Clients use the txid of environment changes to confirm their
// optimistic state.
type SyncService struct {
	room   Room
	logger logger.ILogger
}

func NewSyncService(room Room, log logger.ILogger) *SyncService {
	return &SyncService{room: room, logger: log}
}

// Forward has the signature of an event handler and of events.PublisherFunc.
func (s *SyncService) Forward(ctx context.Context, event events.Event) error {
	projectID, err := uuid.Parse(events.ProjectID(event))
	if err != nil {
		s.logger.Debug(syncModule, "Event without project dropped", map[string]interface{}{
			"type": event.EventType(),
		})
		return nil
	}
	data, err := json.Marshal(events.ToEnvelope(event))
	if err != nil {
		return err
	}
	s.room.Deliver(ctx, projectID, data)
	return nil
}

// Publisher returns a publisher that forwards in process, used when no event
// bus is configured.
func (s *SyncService) Publisher() events.Publisher {
	return events.PublisherFunc(s.Forward)
}
