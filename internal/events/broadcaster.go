package events

import (
	"go.uber.org/zap"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
	"github.com/ateliercolor/presstrack/pkg/metrics"
)

// Broadcaster fans a workflow transition out to every interested connection.
// Delivery is at-least-once: after a reconnect-and-replay the same transition
// can reach a client twice, and consumers dedupe on the per-job sequence.
type Broadcaster struct {
	registry *SubscriptionRegistry
	backlog  *backlog
	audit    *AuditProducer
}

type BroadcasterOption func(b *Broadcaster)

// WithAuditProducer mirrors every published event onto the audit feed.
func WithAuditProducer(audit *AuditProducer) BroadcasterOption {
	return func(b *Broadcaster) {
		b.audit = audit
	}
}

func NewBroadcaster(registry *SubscriptionRegistry, backlogSize int, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		registry: registry,
		backlog:  newBacklog(backlogSize),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish is fire-and-forget from the workflow's perspective: it never waits
// for client acknowledgement.
func (b *Broadcaster) Publish(ev api.Event) {
	env := b.backlog.PushBack(ev)
	delivered := b.registry.deliver(env)
	metrics.AddEventsDelivered(ev.Kind, delivered)

	if b.audit != nil {
		if err := b.audit.Write(ev); err != nil {
			zap.S().Named("broadcaster").Errorw("failed to write audit event", "error", err, "job_id", ev.JobID)
		}
	}

	zap.S().Named("broadcaster").Debugw("event published",
		"kind", ev.Kind, "job_id", ev.JobID, "seq", ev.Seq, "delivered", delivered)
}

// Replay returns the buffered events for a scope after the given cursor. A
// client that reconnects re-issues its subscriptions, then asks for replay
// with the last cursor it saw.
func (b *Broadcaster) Replay(scope Scope, afterCursor int64) []Envelope {
	return b.backlog.After(scope, afterCursor)
}
