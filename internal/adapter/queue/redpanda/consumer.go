package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/observability"
)

// AssessmentHandler processes one assessment task end to end.
type AssessmentHandler interface {
	HandleAssessment(ctx domain.Context, t domain.AssessmentTask) error
}

// Consumer reads assessment tasks from the topic and dispatches them to a
// fixed worker pool.
type Consumer struct {
	session *kgo.GroupTransactSession
	handler AssessmentHandler

	groupID    string
	topic      string
	workers    int
	backoffMax time.Duration

	records  chan *kgo.Record
	shutdown chan struct{}
}

// NewConsumer constructs a group Consumer with read-committed isolation.
func NewConsumer(brokers []string, groupID string, handler AssessmentHandler, workers int, backoffMax time.Duration) (*Consumer, error) {
	return NewConsumerWithOptions(brokers, groupID, "ai-interviewer-consumer", TopicAssessments, handler, workers, backoffMax)
}

// NewConsumerWithOptions constructs a Consumer with a custom transactional ID
// and topic. Tests use this to isolate consumers from each other.
func NewConsumerWithOptions(brokers []string, groupID, transactionalID, topic string, handler AssessmentHandler, workers int, backoffMax time.Duration) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("missing required group ID")
	}
	if workers < 1 {
		workers = 1
	}

	tempClient, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("temp client: %w", err)
	}
	defer tempClient.Close()
	if err := ensureTopic(context.Background(), tempClient, topic, 1, 1); err != nil {
		slog.Warn("ensure topic failed, it may already exist",
			slog.String("topic", topic), slog.Any("error", err))
	}

	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))),
	)

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.RequireStableFetchOffsets(),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.DialTimeout(10 * time.Second),
		kgo.SessionTimeout(30 * time.Second),
		kgo.HeartbeatInterval(3 * time.Second),
		kgo.FetchMaxWait(5 * time.Second),
		kgo.AutoCommitMarks(),
		kgo.AutoCommitInterval(time.Second),
	}
	session, err := kgo.NewGroupTransactSession(opts...)
	if err != nil {
		return nil, fmt.Errorf("redpanda transactional session: %w", err)
	}

	slog.Info("redpanda consumer created",
		slog.String("group_id", groupID),
		slog.String("topic", topic),
		slog.Int("workers", workers))
	return &Consumer{
		session:    session,
		handler:    handler,
		groupID:    groupID,
		topic:      topic,
		workers:    workers,
		backoffMax: backoffMax,
		records:    make(chan *kgo.Record, workers*2),
		shutdown:   make(chan struct{}),
	}, nil
}

// Start runs the poll loop and worker pool until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	slog.Info("starting redpanda consumer",
		slog.String("group_id", c.groupID),
		slog.String("topic", c.topic),
		slog.Int("workers", c.workers))

	for i := 0; i < c.workers; i++ {
		go c.worker(ctx, i)
	}
	go c.pollLoop(ctx)

	<-ctx.Done()
	close(c.shutdown)
	return ctx.Err()
}

func (c *Consumer) pollLoop(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = c.backoffMax
	bo.MaxElapsedTime = 0 // poll forever

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		default:
		}

		fetches := c.session.PollFetches(ctx)
		if errs := fetches.Errors(); len(errs) > 0 {
			fatal := false
			for _, fe := range errs {
				if ctx.Err() != nil {
					return
				}
				slog.Error("fetch error",
					slog.String("topic", fe.Topic),
					slog.Int("partition", int(fe.Partition)),
					slog.Any("error", fe.Err))
				if fe.Err != nil && fe.Err.Error() == "unable to dial" {
					fatal = true
				}
			}
			if fatal {
				slog.Error("fatal connection error, stopping poll loop")
				return
			}
			time.Sleep(bo.NextBackOff())
			continue
		}
		bo.Reset()

		fetches.EachRecord(func(record *kgo.Record) {
			select {
			case c.records <- record:
			case <-ctx.Done():
			}
		})
	}
}

func (c *Consumer) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case record := <-c.records:
			if record == nil {
				return
			}
			if err := c.processRecord(ctx, record); err != nil {
				slog.Error("assessment task failed",
					slog.Int("worker_id", id),
					slog.Int64("offset", record.Offset),
					slog.Any("error", err))
			}
		}
	}
}

// processRecord unmarshals one task and runs the assessment handler.
func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) error {
	tracer := otel.Tracer("queue.consumer")
	ctx, span := tracer.Start(ctx, "ProcessAssessmentTask")
	defer span.End()

	observability.StartAssessment()

	var task domain.AssessmentTask
	if err := json.Unmarshal(record.Value, &task); err != nil {
		observability.FailAssessment()
		return fmt.Errorf("unmarshal task: %w", err)
	}

	// Correlate worker logs with the originating HTTP request.
	if task.RequestID != "" {
		ctx = observability.ContextWithRequestID(ctx, task.RequestID)
	}
	ctx = observability.ContextWithSessionID(ctx, task.SessionID)
	lg := observability.LoggerFromContext(ctx).With(slog.String("session_id", task.SessionID))
	ctx = observability.ContextWithLogger(ctx, lg)

	lg.Info("processing assessment task", slog.Int64("offset", record.Offset))
	if err := c.handler.HandleAssessment(ctx, task); err != nil {
		observability.FailAssessment()
		return fmt.Errorf("handle assessment: %w", err)
	}
	observability.CompleteAssessment()
	lg.Info("assessment task completed")
	return nil
}

// Close releases the underlying session.
func (c *Consumer) Close() error {
	if c.session != nil {
		c.session.Close()
	}
	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}
	return nil
}
