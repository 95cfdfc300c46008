// Package redpanda publishes and consumes assessment tasks over
// Redpanda/Kafka. The producer uses a transactional client so that a task
// is enqueued exactly once; the consumer reads committed records only and
// dispatches them to the assessment handler.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
)

// TopicAssessments carries one record per finished interview session.
const TopicAssessments = "interview-assessments"

// Producer wraps a transactional Kafka producer and implements domain.Queue.
type Producer struct {
	client *kgo.Client
	topic  string

	// transactionChan serializes transactions; the client allows only one
	// open transaction at a time.
	transactionChan chan struct{}
}

// NewProducer constructs a Producer with exactly-once semantics.
func NewProducer(brokers []string) (*Producer, error) {
	return NewProducerWithOptions(brokers, "ai-interviewer-producer", TopicAssessments)
}

// NewProducerWithOptions constructs a Producer with a custom transactional ID
// and topic. Tests use this to isolate producers from each other.
func NewProducerWithOptions(brokers []string, transactionalID, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	if err := ensureTopic(context.Background(), client, topic, 1, 1); err != nil {
		slog.Warn("ensure topic failed, it may already exist",
			slog.String("topic", topic), slog.Any("error", err))
	}

	return &Producer{
		client:          client,
		topic:           topic,
		transactionChan: make(chan struct{}, 1),
	}, nil
}

// EnqueueAssessment publishes one assessment task inside a transaction.
func (p *Producer) EnqueueAssessment(ctx domain.Context, task domain.AssessmentTask) error {
	select {
	case p.transactionChan <- struct{}{}:
		defer func() { <-p.transactionChan }()
	case <-ctx.Done():
		return fmt.Errorf("op=queue.enqueue: %w", ctx.Err())
	}

	if err := p.client.BeginTransaction(); err != nil {
		return fmt.Errorf("op=queue.enqueue: begin transaction: %w", err)
	}

	b, err := json.Marshal(task)
	if err != nil {
		p.abort(ctx)
		return fmt.Errorf("op=queue.enqueue: marshal task: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(task.SessionID), // session id keys keep per-session ordering
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "session_id", Value: []byte(task.SessionID)},
			{Key: "request_id", Value: []byte(task.RequestID)},
		},
	}

	e := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, record, e.Promise())
	if err := e.Err(); err != nil {
		p.abort(ctx)
		return fmt.Errorf("op=queue.enqueue: produce: %w", err)
	}

	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("op=queue.enqueue: commit transaction: %w", err)
	}

	slog.Info("assessment task enqueued",
		slog.String("session_id", task.SessionID),
		slog.String("topic", p.topic))
	return nil
}

func (p *Producer) abort(ctx context.Context) {
	if err := p.client.EndTransaction(ctx, kgo.TryAbort); err != nil {
		slog.Error("failed to abort transaction", slog.Any("error", err))
	}
}

// Close releases the underlying client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
