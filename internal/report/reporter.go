package report

import (
	"context"
	"log/slog"

	"github.com/aelpxy/dockup/internal/backup"
	"github.com/aelpxy/dockup/internal/fault"
)

// Notifier delivers a rendered report.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type Reporter struct {
	notifier Notifier
	host     string
	logger   *slog.Logger
}

func NewReporter(notifier Notifier, host string, logger *slog.Logger) *Reporter {
	return &Reporter{notifier: notifier, host: host, logger: logger}
}

// Report renders run and hands it to the notifier. Any failure comes back
// as a NOTIFICATION error; callers log it and keep the run's exit status.
func (r *Reporter) Report(ctx context.Context, run *backup.RunReport) error {
	msg, err := Render(r.host, run)
	if err != nil {
		return fault.New(fault.KindNotification, "render report", err)
	}

	if err := r.notifier.Notify(ctx, msg); err != nil {
		return fault.New(fault.KindNotification, "send report", err)
	}

	r.logger.Info("report sent", "run_id", run.RunID, "status", run.Status)
	return nil
}
