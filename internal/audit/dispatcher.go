package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

const (
	dispatchTimeout  = 2 * time.Second
	retryInterval    = 5 * time.Second
	receiveBackoff   = time.Second
	fallbackCapacity = 1024
)

// FailureObserver counts audit events that could not be flushed on the first
// attempt. Satisfied by metrics.EngineMetrics.
type FailureObserver interface {
	ObserveAuditFailure()
}

// Dispatcher pushes events through a queue into the sink without ever
// blocking the emitting session. Events that cannot be queued or flushed go
// to a bounded in-memory buffer and are retried in the background; when the
// buffer overflows the oldest events are dropped and counted.
type Dispatcher struct {
	queue    queueClient
	sink     Sink
	observer FailureObserver
	logger   *logging.Logger

	mu       sync.Mutex
	fallback []Event
	dropped  int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher wires a queue to a sink. observer may be nil.
func NewDispatcher(queue queueClient, sink Sink, observer FailureObserver, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		queue:    queue,
		sink:     sink,
		observer: observer,
		logger:   logger,
	}
}

// Start launches the drain and retry loops.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.drainLoop(ctx)
	}()
	go func() {
		defer d.wg.Done()
		d.retryLoop(ctx)
	}()
}

// Close stops the background loops and makes a final flush attempt for any
// buffered events.
func (d *Dispatcher) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	d.flushFallback(ctx)
}

// Emit queues one event. Never blocks beyond a short bound and never returns
// an error: on any failure the event lands in the fallback buffer.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("audit: failed to encode event", "error", err, "event_type", event.EventType)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()

	if err := d.queue.Send(sendCtx, string(body)); err != nil {
		d.logger.Warn("audit: queue unavailable, buffering event",
			"error", err,
			"event_type", event.EventType,
			"session_id", event.SessionID,
		)
		d.observeFailure()
		d.buffer(event)
	}
}

// PendingFallback reports how many events await retry. Exposed for tests and
// the health endpoint.
func (d *Dispatcher) PendingFallback() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fallback)
}

// Dropped reports how many events were evicted from a full retry buffer and
// are permanently lost.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) drainLoop(ctx context.Context) {
	for {
		msgs, err := d.queue.Receive(ctx, 10, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("audit: queue receive failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveBackoff):
			}
			continue
		}
		for _, msg := range msgs {
			var event Event
			if err := json.Unmarshal([]byte(msg.Body), &event); err != nil {
				d.logger.Error("audit: failed to decode queued event", "error", err)
				_ = d.queue.Delete(ctx, msg.ReceiptHandle)
				continue
			}

			appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
			err := d.sink.Append(appendCtx, event)
			cancel()
			if err != nil {
				d.logger.Warn("audit: sink unavailable, buffering event",
					"error", err,
					"event_type", event.EventType,
				)
				d.buffer(event)
			}
			_ = d.queue.Delete(ctx, msg.ReceiptHandle)
		}
	}
}

func (d *Dispatcher) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.flushFallback(ctx)
		}
	}
}

func (d *Dispatcher) flushFallback(ctx context.Context) {
	d.mu.Lock()
	pending := d.fallback
	d.fallback = nil
	d.mu.Unlock()

	for i, event := range pending {
		appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
		err := d.sink.Append(appendCtx, event)
		cancel()
		if err != nil {
			d.mu.Lock()
			d.fallback = append(pending[i:], d.fallback...)
			d.mu.Unlock()
			return
		}
	}
}

func (d *Dispatcher) buffer(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.fallback) >= fallbackCapacity {
		// Oldest event is lost for good; that must show up on a dashboard.
		d.fallback = d.fallback[1:]
		d.dropped++
		d.observeFailure()
		d.logger.Error("audit: retry buffer full, oldest event dropped", "dropped_total", d.dropped)
	}
	d.fallback = append(d.fallback, event)
}

func (d *Dispatcher) observeFailure() {
	if d.observer != nil {
		d.observer.ObserveAuditFailure()
	}
}

// LogSink writes audit events to the structured log. It is the sink of last
// resort when no database is configured; the records stay greppable.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(_ context.Context, event Event) error {
	s.logger.Info("audit_event",
		"event_id", event.ID,
		"event_type", string(event.EventType),
		"session_id", event.SessionID,
		"timestamp", event.Timestamp.Format(time.RFC3339Nano),
		"payload", string(event.Payload),
	)
	return nil
}
