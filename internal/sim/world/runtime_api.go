package world

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }
func (w *World) SetEventSink(s EventSink)     { w.events = s }

// ReportBlockBroken hands a block break from the renderer to the world loop.
// It never blocks; when the buffer is full the break is counted and dropped.
func (w *World) ReportBlockBroken(block string) bool {
	if w == nil || block == "" {
		return false
	}
	select {
	case w.blockBroken <- block:
		return true
	default:
		w.breakDrops.Add(1)
		return false
	}
}
