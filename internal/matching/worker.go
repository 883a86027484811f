package matching

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/apperr"
	"github.com/uniportal/internship-portal/internal/messaging"
)

// RunReply is the reply to a matching.run request.
type RunReply struct {
	Result *RunResult  `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
	Code   apperr.Code `json:"code,omitempty"`
}

// Worker serves matching.run requests and, when an interval is set, runs
// reconciliation periodically.
type Worker struct {
	svc      *Service
	nats     *messaging.NATSClient
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWorker creates a worker. A zero interval disables periodic runs.
func NewWorker(svc *Service, nats *messaging.NATSClient, timeout, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		svc:      svc,
		nats:     nats,
		timeout:  timeout,
		interval: interval,
		logger:   logger.With(zap.String("component", "matcher-worker")),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to run requests and starts the periodic loop.
func (w *Worker) Start() error {
	if w.nats != nil {
		if err := w.nats.SubscribeMatchingRun(w.handleRun); err != nil {
			return err
		}
	}
	if w.interval > 0 {
		go w.loop()
	}
	w.logger.Info("worker started", zap.Duration("interval", w.interval))
	return nil
}

// Stop ends the periodic loop and cancels in-flight runs.
func (w *Worker) Stop() {
	w.cancel()
	w.logger.Info("worker stopped")
}

func (w *Worker) handleRun(_ []byte) []byte {
	reply := w.run()
	data, err := json.Marshal(reply)
	if err != nil {
		w.logger.Error("marshal run reply", zap.Error(err))
		return []byte(`{"error":"internal error","code":"internal"}`)
	}
	return data
}

func (w *Worker) run() RunReply {
	ctx := w.ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	result, err := w.svc.RunMatching(ctx)
	if err != nil {
		return RunReply{Error: err.Error(), Code: apperr.CodeOf(err)}
	}
	return RunReply{Result: result}
}

func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if reply := w.run(); reply.Error != "" && reply.Code != apperr.CodeConflict {
				w.logger.Warn("scheduled run failed", zap.String("error", reply.Error))
			}
		}
	}
}
