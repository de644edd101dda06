// Package ingest accepts facial samples from the perception subsystem
// over REST, NDJSON TCP, WebSocket, MQTT or Kafka and funnels them into
// a single channel. Adapters never block the pipeline: when the channel
// is full the sample is dropped and logged.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"cogsense/internal/model"
)

// Envelope pairs a sample with the producer's session key. The key is
// the producer's identity, not the session ID; the session manager owns
// the mapping.
type Envelope struct {
	Key    string
	Sample model.FacialSample
}

func SendNonBlocking(ctx context.Context, out chan<- Envelope, env Envelope, logger *slog.Logger) bool {
	select {
	case out <- env:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("sample channel full, dropping sample", "key", env.Key, "timestamp", env.Sample.Timestamp)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
