package ws

import (
	"time"

	"go.uber.org/zap"
)

// HeartbeatConfig holds heartbeat tuning parameters.
type HeartbeatConfig struct {
	Interval time.Duration // how often to ping (default: 30s)
	Timeout  time.Duration // grace period after a missed ping (default: 10s)
}

// DefaultHeartbeatConfig returns sensible defaults for heartbeat monitoring.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// StartHeartbeat pings every connection each Interval and drops those silent
// for longer than Interval + Timeout. It returns immediately; the goroutine
// exits when the server shuts down.
func StartHeartbeat(server *Server, config HeartbeatConfig) {
	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-server.done:
				return
			case <-ticker.C:
				checkConnections(server, config, time.Now())
			}
		}
	}()
}

// checkConnections evicts stale connections and pings the rest. Browsers
// answer the ping with a pong, which the read loop records as activity.
func checkConnections(server *Server, config HeartbeatConfig, now time.Time) {
	deadline := config.Interval + config.Timeout

	for _, c := range server.Connections().All() {
		if idle := now.Sub(c.LastSeen()); idle > deadline {
			server.logger.Info("heartbeat timeout",
				zap.String("conn_id", c.ID),
				zap.Duration("idle", idle.Round(time.Second)),
			)
			server.RemoveConnection(c)
			continue
		}

		if err := c.WritePing(); err != nil {
			server.logger.Debug("heartbeat ping failed", zap.String("conn_id", c.ID), zap.Error(err))
			server.RemoveConnection(c)
		}
	}
}
