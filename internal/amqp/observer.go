package amqp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ProgressPublisher forwards import progress updates to the broker. Each
// batch gets a fresh job id, rotated on the first update after the previous
// batch finished. Publish failures are logged and swallowed: progress
// events are advisory and must never fail the import itself.
type ProgressPublisher struct {
	client *Client
	userID string

	mu     sync.Mutex
	jobID  string
	active bool
}

func NewProgressPublisher(client *Client, userID string) *ProgressPublisher {
	return &ProgressPublisher{client: client, userID: userID}
}

func (p *ProgressPublisher) Progress(ctx context.Context, completed, total int, done bool) {
	p.mu.Lock()
	if !p.active {
		p.jobID = uuid.NewString()
		p.active = true
	}
	jobID := p.jobID
	if done {
		p.active = false
	}
	p.mu.Unlock()

	msg := NewImportProgressMessage(jobID, p.userID, completed, total, done)
	if err := p.client.PublishImportProgress(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to publish import progress",
			"job_id", jobID,
			"completed", completed,
			"total", total,
			"error", err)
	}
}
