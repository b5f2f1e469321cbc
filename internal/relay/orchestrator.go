package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jstello/OneInc/internal/completion"
	"github.com/jstello/OneInc/internal/metrics"
	"github.com/jstello/OneInc/internal/styles"
)

// Messages sent to the external caller. Upstream error detail never appears
// here; it goes to the log only.
const (
	timeoutMessage = "Timeout processing this writing style"
	genericMessage = "An error occurred while processing your request"
)

// runState tracks progress of one relay run. The state is threaded
// explicitly so the invariant "complete only after every style was visited"
// is checked in code rather than implied by control flow.
type runState int

const (
	stateIdle runState = iota
	stateInStyle
	stateFailed
	stateDone
)

// Orchestrator walks the style catalog in order, invoking the completion
// client once per style and emitting domain events as fragments arrive.
// Styles are processed strictly one at a time: the outbound wire format is
// line-oriented, and interleaving concurrent upstreams would make the event
// order ambiguous to the client.
type Orchestrator struct {
	catalog *styles.Catalog
	client  completion.Streamer
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates an orchestrator over the given catalog and completion client.
func New(catalog *styles.Catalog, client completion.Streamer, m *metrics.Metrics, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		catalog: catalog,
		client:  client,
		metrics: m,
		logger:  logger,
	}
}

// Run produces the event sequence for one sanitized input. The channel is
// closed when the sequence ends. Cancelling ctx (client disconnect) stops
// the in-flight upstream call and event production. Every failure path is
// converted to an event; Run never panics across this boundary.
func (o *Orchestrator) Run(ctx context.Context, text string) <-chan Event {
	out := make(chan Event)
	go o.produce(ctx, text, out)
	return out
}

func (o *Orchestrator) produce(ctx context.Context, text string, out chan<- Event) {
	defer close(out)

	logger := o.logger.With().Str("stream_id", uuid.NewString()).Logger()

	state := stateIdle
	visited := 0

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("unexpected orchestration failure")
			o.metrics.StreamEvents.WithLabelValues(string(EventError)).Inc()
			o.emit(ctx, out, Event{Type: EventError, Message: genericMessage})
		}
	}()

	for _, def := range o.catalog.All() {
		state = stateInStyle
		if !o.emit(ctx, out, Event{Type: EventStyleStart, Style: def.ID}) {
			return
		}
		o.metrics.StreamEvents.WithLabelValues(string(EventStyleStart)).Inc()

		start := time.Now()
		err := o.relayStyle(ctx, def, text, out)
		o.metrics.UpstreamDuration.WithLabelValues(def.ID).Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			if !o.emit(ctx, out, Event{Type: EventStyleEnd, Style: def.ID}) {
				return
			}
			o.metrics.StreamEvents.WithLabelValues(string(EventStyleEnd)).Inc()

		case errors.Is(err, context.Canceled):
			logger.Debug().Str("style", def.ID).Msg("client disconnected mid-stream")
			return

		default:
			// One style's failure never aborts the request. The caller gets
			// a fixed message; the upstream detail stays in the log.
			state = stateFailed
			logger.Error().Err(err).Str("style", def.ID).Msg("style processing failed")
			o.metrics.StyleFailures.WithLabelValues(def.ID, failureReason(err)).Inc()
			if !o.emit(ctx, out, Event{Type: EventError, Style: def.ID, Message: failureMessage(def.ID, err)}) {
				return
			}
			o.metrics.StreamEvents.WithLabelValues(string(EventError)).Inc()
		}
		visited++
	}

	if visited == o.catalog.Len() {
		state = stateDone
	}
	if state != stateDone {
		// Not every style was visited; the stream must not claim completion.
		return
	}
	if o.emit(ctx, out, Event{Type: EventComplete}) {
		o.metrics.StreamEvents.WithLabelValues(string(EventComplete)).Inc()
	}
}

// relayStyle streams one style's completion, emitting a content event per
// fragment. Returns nil on normal upstream close.
func (o *Orchestrator) relayStyle(ctx context.Context, def styles.Definition, text string, out chan<- Event) error {
	stream, err := o.client.Stream(ctx, def.Instruction, text)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !o.emit(ctx, out, Event{Type: EventContent, Style: def.ID, Content: frag}) {
			return context.Canceled
		}
		o.metrics.StreamEvents.WithLabelValues(string(EventContent)).Inc()
	}
}

// emit sends one event unless the request has been cancelled. Cancellation
// takes priority over a ready consumer so a disconnected client never
// receives further events.
func (o *Orchestrator) emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func failureMessage(styleID string, err error) string {
	if errors.Is(err, completion.ErrTimeout) {
		return timeoutMessage
	}
	return fmt.Sprintf("Error processing %s", styleID)
}

func failureReason(err error) string {
	if errors.Is(err, completion.ErrTimeout) {
		return "timeout"
	}
	return "upstream_error"
}
