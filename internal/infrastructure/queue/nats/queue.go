package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

const (
	workerQueueGroup   = "rxcheck-workers"
	evaluationIDHeader = "Rx-Evaluation-Id"
)

type Subjects struct {
	EvaluationRequested string
	ReviewRequired      string
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

// Queue carries evaluation jobs to workers and publishes human-review
// notifications.
type Queue struct {
	conn     *nats.Conn
	subjects Subjects
	executor *resilience.Executor
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.RetryOnFailedConnect == nil {
		retry := true
		o.RetryOnFailedConnect = &retry
	}
	return o
}

func New(url string, subjects Subjects, options Options) (*Queue, error) {
	options = options.withDefaults()

	conn, err := nats.Connect(
		url,
		nats.Name("rx-crosscheck"),
		nats.Timeout(options.ConnectTimeout),
		nats.ReconnectWait(options.ReconnectWait),
		nats.MaxReconnects(options.MaxReconnects),
		nats.RetryOnFailedConnect(*options.RetryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subjects: subjects,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

type evaluationRequested struct {
	EvaluationID string    `json:"evaluation_id"`
	RequestedAt  time.Time `json:"requested_at"`
}

func (q *Queue) PublishEvaluationRequested(ctx context.Context, evaluationID string) error {
	payload, err := json.Marshal(evaluationRequested{EvaluationID: evaluationID, RequestedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode evaluation request: %w", err)
	}
	return q.publish(ctx, newMessage(q.subjects.EvaluationRequested, evaluationID, payload))
}

func (q *Queue) PublishReviewRequired(ctx context.Context, notification domain.ReviewNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode review notification: %w", err)
	}
	return q.publish(ctx, newMessage(q.subjects.ReviewRequired, notification.EvaluationID, payload))
}

// newMessage tags every message with its evaluation id so operators can
// filter a stream without decoding bodies.
func newMessage(subject, evaluationID string, payload []byte) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Header.Set(evaluationIDHeader, evaluationID)
	msg.Header.Set("Content-Type", "application/json")
	msg.Data = payload
	return msg
}

func (q *Queue) publish(ctx context.Context, msg *nats.Msg) error {
	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish %s: %w", msg.Subject, err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("nats publish", err, classifyPublishError)
}

// SubscribeEvaluationRequested blocks until ctx is done, then drains the
// subscription so in-flight jobs finish.
func (q *Queue) SubscribeEvaluationRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subjects.EvaluationRequested, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		evaluationID, err := decodeEvaluationRequested(msg)
		if err != nil {
			slog.Warn("evaluation_request_dropped", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, evaluationID); err != nil {
			slog.Error("worker_handler_failed", "evaluation_id", evaluationID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// decodeEvaluationRequested also accepts a bare id, or only the id header,
// for messages published by hand with the nats CLI.
func decodeEvaluationRequested(msg *nats.Msg) (string, error) {
	var body evaluationRequested
	if err := json.Unmarshal(msg.Data, &body); err == nil {
		if body.EvaluationID == "" {
			return "", errors.New("evaluation request without evaluation_id")
		}
		return body.EvaluationID, nil
	}
	if len(msg.Data) == 0 && msg.Header.Get(evaluationIDHeader) != "" {
		return msg.Header.Get(evaluationIDHeader), nil
	}
	id := string(msg.Data)
	if id == "" || id[0] == '{' {
		return "", fmt.Errorf("malformed evaluation request %q", id)
	}
	return id, nil
}

// classifyPublishError decides whether a failed publish is worth retrying.
// Oversized or misaddressed messages never succeed on retry.
func classifyPublishError(err error) resilience.Classification {
	switch {
	case err == nil:
		return resilience.Classification{}
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return resilience.Classification{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionReconnecting):
		return resilience.Classification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ClassifyTransport(err)
	}
}
