package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/ojalabs/oja-backend/pkg/config"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/outbox"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			{
				ID:            uuid.New(),
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelopePayload(t, "event-one"),
			},
			{
				ID:            uuid.New(),
				EventType:     enums.EventEscrowReleased,
				AggregateType: enums.AggregateEscrow,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelopePayload(t, "event-two"),
			},
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestServiceProcessBatchSetsMessageAttributes(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPayoutCompleted,
		AggregateType: enums.AggregatePayout,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "payout-done"),
		CreatedAt:     time.Now().UTC(),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(pub.messages); got != 1 {
		t.Fatalf("expected one published message, got %d", got)
	}
	msg := pub.messages[0]
	if msg.Attributes["event_type"] != string(enums.EventPayoutCompleted) {
		t.Fatalf("unexpected event_type attribute: %s", msg.Attributes["event_type"])
	}
	if msg.Attributes["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute: %s", msg.Attributes["aggregate_id"])
	}
	if msg.Attributes["event_id"] != "payout-done" {
		t.Fatalf("unexpected event_id attribute: %s", msg.Attributes["event_id"])
	}
}

func TestServiceProcessBatchEmptyFetchReportsIdle(t *testing.T) {
	repo := &fakeRepo{}
	service := newTestService(t, repo, &fakePublisher{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected idle batch")
	}
}

func TestServiceProcessBatchMarksFailureAtAttemptCap(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "stuck"),
		AttemptCount:  1,
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
		},
	}
	service := newTestService(t, repo, pub, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("expected failure recorded, got %d", got)
	}
	if got := len(repo.published); got != 0 {
		t.Fatalf("expected no publishes, got %d", got)
	}
}

func TestServiceSweepReleasesDueHoldsOnInterval(t *testing.T) {
	releaser := &fakeReleaser{released: 2}
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, nil)
	service.releaser = releaser

	service.sweepExpiredHolds(context.Background())
	if releaser.calls != 1 {
		t.Fatalf("expected one sweep, got %d", releaser.calls)
	}
	if releaser.limit != sweepBatchLimit {
		t.Fatalf("unexpected sweep limit: %d", releaser.limit)
	}

	// A second sweep inside the interval is skipped.
	service.sweepExpiredHolds(context.Background())
	if releaser.calls != 1 {
		t.Fatalf("sweep ran again within the interval")
	}

	service.lastSweep = time.Now().Add(-2 * sweepInterval)
	service.sweepExpiredHolds(context.Background())
	if releaser.calls != 2 {
		t.Fatalf("expected sweep to run after the interval elapsed, got %d", releaser.calls)
	}
}

func TestServiceSweepErrorDoesNotStallLoop(t *testing.T) {
	releaser := &fakeReleaser{err: errors.New("db down")}
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, nil)
	service.releaser = releaser

	service.sweepExpiredHolds(context.Background())
	if releaser.calls != 1 {
		t.Fatalf("expected one sweep attempt, got %d", releaser.calls)
	}

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected idle batch")
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakePinger{},
		PubSub:     &fakePinger{},
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeReleaser struct {
	released int
	err      error
	calls    int
	limit    int
}

func (f *fakeReleaser) ReleaseDue(_ context.Context, _ time.Time, limit int) (int, error) {
	f.calls++
	f.limit = limit
	return f.released, f.err
}

type fakePinger struct{}

func (f *fakePinger) Ping(context.Context) error {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return fakePublishResult{}
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "msg-id", nil
}
