package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"marketsim/internal/dao"
)

// Orchestrator drives every active session forward on a fixed interval from
// a single background goroutine. Sessions are swept sequentially; one
// failing session never stops the sweep or the loop.
type Orchestrator struct {
	sessionDAO dao.SessionDAOInterface
	service    *SessionService
	interval   time.Duration
	logger     *zap.SugaredLogger

	stop chan struct{}
	done chan struct{}
}

func NewOrchestrator(sessionDAO dao.SessionDAOInterface, service *SessionService, interval time.Duration, logger *zap.SugaredLogger) *Orchestrator {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Orchestrator{
		sessionDAO: sessionDAO,
		service:    service,
		interval:   interval,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the sweep loop. Call once.
func (o *Orchestrator) Start() {
	go o.run()
	o.logger.Infow("orchestrator started", "interval", o.interval)
}

// Stop signals the loop to exit and waits for the in-flight sweep to
// finish.
func (o *Orchestrator) Stop() {
	close(o.stop)
	<-o.done
	o.logger.Info("orchestrator stopped")
}

func (o *Orchestrator) run() {
	defer close(o.done)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			o.sweep()
		}
	}
}

func (o *Orchestrator) sweep() {
	sessions, err := o.sessionDAO.ListActive()
	if err != nil {
		o.logger.Errorw("failed to list active sessions", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.interval)
	defer cancel()

	for i := range sessions {
		id := sessions[i].ID
		if err := o.service.AdvanceSession(ctx, id); err != nil {
			o.logger.Errorw("session sweep failed", "session_id", id, "error", err)
		}
	}
}
