package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soonrec/identity/internal/auth/domain"
	"github.com/soonrec/identity/internal/auth/metrics"
	"github.com/soonrec/identity/internal/auth/store"
	"github.com/soonrec/identity/pkg/idx"
	"github.com/soonrec/identity/pkg/slogx"
	"golang.org/x/sync/errgroup"
)

const defaultActivityTimeout = 5 * time.Second

// ActivityLogger appends audit records. It never reports failure to the
// caller: errors (and panics) are logged and counted, then dropped.
type ActivityLogger struct {
	Store   store.Store
	Metrics metrics.Recorder

	// Timeout bounds a single write. The write is detached from the caller's
	// cancellation but not from this deadline.
	Timeout time.Duration
}

// Log records action for userID. An empty ip is stored as domain.UnknownIP.
func (l *ActivityLogger) Log(ctx context.Context, userID string, action domain.Action, ip, metadata string) {
	log := slogx.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("activity log panicked", slog.String("action", string(action)), slog.Any("panic", r))
			l.recordFailure(action)
		}
	}()

	if ip == "" {
		ip = domain.UnknownIP
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = defaultActivityTimeout
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	now := time.Now().UTC()
	err := l.Store.ActivityLogs().AppendActivity(wctx, domain.ActivityLogEntry{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		Action:    action,
		IPAddress: ip,
		Metadata:  metadata,
		CreatedAt: now,
	})
	if err != nil {
		log.Error("failed to write activity log",
			slog.String("action", string(action)),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		l.recordFailure(action)
	}
}

func (l *ActivityLogger) recordFailure(action domain.Action) {
	if l.Metrics != nil {
		l.Metrics.RecordActivityLogFailure(string(action))
	}
}

// withActivity runs the required write and the best-effort activity log
// concurrently and waits for both. Only the write's error is returned.
func withActivity(ctx context.Context, write func(ctx context.Context) error, logActivity func()) error {
	var wg sync.WaitGroup
	wg.Go(logActivity)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("required write panicked: %v", r)
			}
		}()
		return write(gctx)
	})

	err := g.Wait()
	wg.Wait()
	return err
}
