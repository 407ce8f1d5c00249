package plugraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
)

// Editor applies edits received as messages to a graph, serialising them on a
// single goroutine.
type Editor struct {
	Graph *Graph
	// Sink, if not nil, receives a PlugsDirtied notification (see Publish) for
	// every applied edit that dirtied at least one plug.
	Sink *pubsub.Topic
}

// EditDecoder turns a message body into an Edit.
type EditDecoder func(p []byte) (Edit, error)

// ApplyEdits returns a component.Proc that subscribes to a pubsub subscription,
// decodes incoming messages into edits using the provided EditDecoder, and
// applies them to the Editor's Graph.
//
// An edit that fails to decode or apply is logged and skipped: edits are
// independent of each other, so later ones are still applied. The changes a
// failed edit made before failing are published like any other.
func (e Editor) ApplyEdits(sub *pubsub.Subscription, decode EditDecoder) component.Proc {
	source := EventSource{
		subscription: sub,
		decoder:      func(p []byte) (any, error) { return decode(p) },
	}
	return source.Stream(func(ctx context.Context, msg any) error {
		return e.apply(ctx, msg.(Edit))
	})
}

// apply applies a single edit and publishes what it dirtied. Only publishing
// failures are returned; a failed edit is logged.
func (e Editor) apply(ctx context.Context, edit Edit) error {
	dirtied, err := e.Graph.Apply(ctx, edit)
	if e.Sink != nil && !dirtied.IsEmpty() {
		if err := Publish(ctx, e.Sink, dirtied); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	if err != nil {
		component.Logger(ctx).Error("Couldn't apply edit", slog.Any("error", err))
	}
	return nil
}

// An EventSource turns the messages of a subscription into decoded values.
type EventSource struct {
	subscription *pubsub.Subscription
	decoder      func(p []byte) (any, error)
}

// An EventHandler handles one decoded message.
type EventHandler func(ctx context.Context, msg any) error

// Stream returns a component.Proc handing every received message, once decoded,
// to h. Messages are handled one at a time, in order of receipt.
//
// Messages that fail to decode are logged and skipped. A handler error stops the
// procedure.
func (s EventSource) Stream(h EventHandler) component.Proc {
	return func(l *component.L) {
		logger := component.Logger(l.Context())
		for l.Continue() {
			msg, err := s.subscription.Receive(l.Context())
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					// we're shutting down
					return
				}
				l.Fatal(fmt.Errorf("receive: %w", err))
			}
			// undecodable messages are acked too, or they would be redelivered
			// forever.
			msg.Ack()

			v, err := s.decoder(msg.Body)
			if err != nil {
				logger.Error("Couldn't decode message, message skipped",
					slog.String("msg.id", msg.LoggableID),
					slog.Any("error", err),
				)
				continue
			}

			if err := h(l.Context(), v); err != nil {
				l.Fatal(fmt.Errorf("process: %w", err))
			}
		}
	}
}
