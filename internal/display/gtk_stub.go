//go:build !gtk

package display

import (
	"log/slog"

	"github.com/jmylchreest/overlayd/internal/config"
)

func newGTK(*config.DaemonConfig, *slog.Logger) (Backend, error) {
	return nil, &DisplayError{Message: "gtk backend not compiled in, rebuild with -tags gtk"}
}
