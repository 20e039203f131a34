package session

import (
	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Failure describes an admission that did not succeed.
type Failure struct {
	RoomID   string
	Identity chat.Identity
	Reason   error
}

// Reporter receives admission failures. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Report(f Failure)
}

// ReporterFunc adapts a plain function to the Reporter interface.
type ReporterFunc func(f Failure)

// Report calls fn(f).
func (fn ReporterFunc) Report(f Failure) {
	fn(f)
}

type logReporter struct {
	log *zap.Logger
}

// NewLogReporter returns a Reporter that writes each failure to log.
func NewLogReporter(log *zap.Logger) Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &logReporter{log: log.Named("admission")}
}

func (r *logReporter) Report(f Failure) {
	r.log.Warn("admission failed",
		zap.String("room_id", f.RoomID),
		zap.Stringer("identity", f.Identity),
		zap.Error(f.Reason),
	)
}
