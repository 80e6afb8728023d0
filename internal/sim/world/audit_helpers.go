package world

import (
	"github.com/google/uuid"

	"digstream.live/internal/protocol"
)

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.TimeMS == 0 {
		e.TimeMS = w.clock.Now().UnixMilli()
	}
	if err := w.auditLogger.WriteAudit(e); err != nil {
		w.logger.Printf("audit write: %v", err)
	}
}

func (w *World) emit(ev protocol.EventMsg) {
	if w.events == nil {
		return
	}
	ev.Type = protocol.TypeEvent
	ev.ProtocolVersion = protocol.Version
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	w.events.Publish(ev)
}
