package dbus

import (
	"fmt"

	"github.com/jmylchreest/overlayd/internal/model"
)

// EmitContentChanged emits the ContentChanged signal for the new slot value.
// nil content is sent with present=false.
func (s *Server) EmitContentChanged(c *model.Content) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	info := ContentInfoFrom(c)
	if err := conn.Emit(ObjectPath, SignalContentChanged, info.args()...); err != nil {
		return fmt.Errorf("failed to emit ContentChanged signal: %w", err)
	}

	s.logger.Debug("emitted ContentChanged signal", "content_id", info.ID, "present", info.Present)
	return nil
}
