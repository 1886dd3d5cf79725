package pngrows

import (
	"github.com/kovidgoyal/pngrows/internal/logging"
	"github.com/sirupsen/logrus"
)

// SetLogger sets the logger used by every package of this module. Nothing is
// logged until a logger is set. Pass nil to silence logging again.
func SetLogger(l *logrus.Logger) { logging.SetLogger(l) }
