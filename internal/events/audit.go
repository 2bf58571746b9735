package events

import (
	"context"
	"encoding/json"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
)

const (
	auditSource  string = "atelier.presstrack.api"
	defaultTopic string = "atelier.presstrack.events"
)

// Writer is the interface to be implemented by the underlying audit sink.
type Writer interface {
	Write(ctx context.Context, topic string, e cloudevents.Event) error
	Close(ctx context.Context) error
}

// AuditProducer mirrors every broadcast event onto an external audit feed.
// It buffers pending events so a slow sink never blocks the workflow path.
type AuditProducer struct {
	buffer           *auditBuffer
	startConsumingCh chan any
	doneCh           chan any
	writer           Writer
	topic            string
}

type ProducerOptions func(p *AuditProducer)

func WithOutputTopic(topic string) ProducerOptions {
	return func(p *AuditProducer) {
		p.topic = topic
	}
}

func NewAuditProducer(w Writer, opts ...ProducerOptions) *AuditProducer {
	p := &AuditProducer{
		buffer:           newAuditBuffer(),
		startConsumingCh: make(chan any),
		doneCh:           make(chan any),
		writer:           w,
		topic:            defaultTopic,
	}

	for _, o := range opts {
		o(p)
	}

	go p.run()
	return p
}

func (p *AuditProducer) Write(ev api.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	prevSize := p.buffer.Size()
	p.buffer.PushBack(&auditMessage{
		Kind: ev.Kind,
		Data: data,
	})

	if prevSize == 0 {
		// unblock the consumer and start sending messages
		p.startConsumingCh <- struct{}{}
	}

	return nil
}

func (p *AuditProducer) Close() error {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(closeCtx)
	g.Go(func() error {
		p.doneCh <- struct{}{}
		return p.writer.Close(ctx)
	})
	if err := g.Wait(); err != nil {
		zap.S().Errorf("audit producer closed with error: %s", err)
		return err
	}

	zap.S().Named("audit_producer").Info("audit producer closed")

	return nil
}

func (p *AuditProducer) run() {
	for {
		select {
		case <-p.doneCh:
			return
		default:
		}

		if p.buffer.Size() == 0 {
			select {
			case <-p.startConsumingCh:
			case <-p.doneCh:
			}
		}

		msg := p.buffer.Pop()
		if msg == nil {
			continue
		}

		e := cloudevents.NewEvent()
		e.SetID(uuid.NewString())
		e.SetSource(auditSource)
		e.SetType(msg.Kind)
		_ = e.SetData(*cloudevents.StringOfApplicationJSON(), msg.Data)

		if err := p.writer.Write(context.TODO(), p.topic, e); err != nil {
			zap.S().Named("audit_producer").Errorw("failed to send message", "error", err, "event", e)
		}
	}
}
