package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/arena/internal/session"

type telemetry struct {
	shots        metric.Int64Counter
	hits         metric.Int64Counter
	eliminations metric.Int64Counter
	sendFailures metric.Int64Counter
	rejects      metric.Int64Counter
}

// newTelemetry creates the session counters. A nil meter uses the global one.
func newTelemetry(m metric.Meter) (*telemetry, error) {
	if m == nil {
		m = otel.Meter(instrumentationName)
	}
	t := &telemetry{}

	var err error
	if t.shots, err = m.Int64Counter("session.shots.fired",
		metric.WithDescription("Shots fired by the local player")); err != nil {
		return nil, fmt.Errorf("creating shots counter: %w", err)
	}
	if t.hits, err = m.Int64Counter("session.hits.landed",
		metric.WithDescription("Hits resolved by this client")); err != nil {
		return nil, fmt.Errorf("creating hits counter: %w", err)
	}
	if t.eliminations, err = m.Int64Counter("session.eliminations",
		metric.WithDescription("Players eliminated as seen by this client")); err != nil {
		return nil, fmt.Errorf("creating eliminations counter: %w", err)
	}
	if t.sendFailures, err = m.Int64Counter("session.send.failed",
		metric.WithDescription("Outbound messages the relay channel refused")); err != nil {
		return nil, fmt.Errorf("creating send failure counter: %w", err)
	}
	if t.rejects, err = m.Int64Counter("session.inbound.rejected",
		metric.WithDescription("Inbound messages whose handler failed")); err != nil {
		return nil, fmt.Errorf("creating reject counter: %w", err)
	}
	return t, nil
}

func (t *telemetry) shot()        { t.shots.Add(context.Background(), 1) }
func (t *telemetry) hit()         { t.hits.Add(context.Background(), 1) }
func (t *telemetry) elimination() { t.eliminations.Add(context.Background(), 1) }

func (t *telemetry) sendFailed(msgType string) {
	t.sendFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", msgType)))
}

func (t *telemetry) rejected(msgType string) {
	t.rejects.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", msgType)))
}
