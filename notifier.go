package plugraph

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/errgroup"
)

// Publish encodes d with gob and sends it to topic. It stamps the notification
// with the current time.
func Publish(ctx context.Context, topic *pubsub.Topic, d PlugsDirtied) error {
	d.Timestamp = time.Now().UTC()
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(d); err != nil {
		return fmt.Errorf("encode gob: %w", err)
	}
	msg := &pubsub.Message{Body: b.Bytes(), Metadata: map[string]string{"graph": d.Graph}}
	if err := topic.Send(ctx, msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

type splitter struct {
	graphName string
	source    *pubsub.Subscription
	sink      *pubsub.Topic
}

// NewSplitter returns a [component.Procedure] that splits whole-graph
// notifications (received from the given source) into per-node notifications
// and publishes them to the specified sink.
//
// It consumes PlugsDirtied notifications and produces NodeDirtied
// notifications.
//
// The splitter measures the duration of processing each notification and labels
// each measurement record with the provided graph name.
func NewSplitter(graphName string, source *pubsub.Subscription, sink *pubsub.Topic) component.Procedure {
	return splitter{
		graphName: graphName,
		source:    source,
		sink:      sink,
	}
}

func (s splitter) Exec(l *component.L) {
	logger := component.Logger(l.Context())
	for l.Continue() {
		msg, err := s.source.Receive(l.GraceContext())
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return
			}
			// A Receive error is either non-retryable or means the context is done;
			// there is no way to recreate the subscription from here.
			l.Fatal(fmt.Errorf("receive: %w", err))
		}

		err = s.handleMessage(l.GraceContext(), logger, msg)
		if err != nil {
			// Never proceed past a notification before publishing all of its
			// per-node slices; the redelivered message is handled on restart.
			logger.Error("Couldn't handle PlugsDirtied message",
				slog.Any("error", err),
			)
			l.Fatal(fmt.Errorf("handle message: %w", err))
		}

		// Acknowledge the message only if the handling process is fully successful, as
		// the service maintains an at-least-once delivery constraint.
		msg.Ack()
	}
}

// handleMessage splits a PlugsDirtied message into NodeDirtied messages and
// publishes each of them. It returns an error if it fails to publish even a
// single NodeDirtied message.
func (s splitter) handleMessage(ctx context.Context, logger *slog.Logger, msg *pubsub.Message) (err error) {
	ctx, span := tracer.Start(ctx, "splitter.handleMessage", trace.WithAttributes(
		attribute.String("msg.id", msg.LoggableID),
	))
	defer span.End()

	defer func(start time.Time) {
		measureSplit(ctx, s.graphName, err == nil, time.Since(start))
	}(time.Now())

	var dirtied PlugsDirtied
	if err := gob.NewDecoder(bytes.NewReader(msg.Body)).Decode(&dirtied); err != nil {
		err := fmt.Errorf("decode gob: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if dirtied.IsEmpty() {
		logger.Info("There are no dirtied plugs in the PlugsDirtied message, message skipped", slog.Uint64("generation", dirtied.After))
		return nil
	}

	logger = logger.With(
		slog.Uint64("generation-before", dirtied.Before),
		slog.Uint64("generation-after", dirtied.After),
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range SplitByNode(dirtied) {
		g.Go(func() error {
			return s.notifyNode(ctx, logger, c)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("send node notifications: %w", err)
	}
	logger.Info("PlugsDirtied message handled successfully")
	return nil
}

func (s splitter) notifyNode(ctx context.Context, logger *slog.Logger, c NodeDirtied) error {
	ctx, span := tracer.Start(ctx, "splitter.notifyNode", trace.WithAttributes(
		attribute.String("node", c.Node),
		attribute.Int64("generation", int64(c.Generation)),
	))
	defer span.End()

	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(c); err != nil {
		err := fmt.Errorf("encode gob: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// The node name is attached as metadata so that brokers partitioning by key
	// deliver the notifications of one node in order.
	msg := &pubsub.Message{Body: b.Bytes(), Metadata: map[string]string{"node": c.Node}}
	if err := s.sink.Send(ctx, msg); err != nil {
		err := fmt.Errorf("send: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	logger.Debug("NodeDirtied message sent", slog.String("node", c.Node))
	return nil
}
