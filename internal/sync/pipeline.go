package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/studio-roster/internal/config"
	"github.com/stacklok/studio-roster/internal/otel"
	"github.com/stacklok/studio-roster/internal/roster"
	"github.com/stacklok/studio-roster/internal/studio"
)

// ErrorKind classifies why a pipeline run was aborted
type ErrorKind string

const (
	// ErrorKindTransport covers unreachable hosts, non-2xx answers and cancelled calls
	ErrorKindTransport ErrorKind = "TransportFailure"

	// ErrorKindDecode means a response body did not have the expected shape
	ErrorKindDecode ErrorKind = "DecodeFailure"

	// ErrorKindTimeParse means a check-in timestamp could not be parsed
	ErrorKindTimeParse ErrorKind = "TimeParseFailure"
)

// Pipeline stages, used in errors, logs and span names
const (
	StageAuthenticate     = "authenticate"
	StageListParticipants = "list_participants"
	StageClassDetails     = "class_details"
	StageAggregate        = "aggregate"
)

// Result contains the outcome of a successful pipeline run
type Result struct {
	RunID            string
	Students         []roster.Student
	ParticipantCount int
}

// Error describes an aborted pipeline run. A run either returns a complete
// Result or an Error, never both.
type Error struct {
	Err     error
	Message string
	Kind    ErrorKind
	Stage   string
	RunID   string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Pipeline performs one complete authenticate, list, fetch and aggregate sequence
//
//go:generate mockgen -destination=mocks/mock_pipeline.go -package=mocks -source=pipeline.go Pipeline
type Pipeline interface {
	// Run builds a fresh roster from the studio API
	Run(ctx context.Context) (*Result, *Error)
}

type triggerKey struct{}

// WithTrigger tags ctx with what started the run. The value is recorded on
// the pipeline.run span.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// TriggerFromContext returns the trigger set by WithTrigger, or ""
func TriggerFromContext(ctx context.Context) string {
	trigger, _ := ctx.Value(triggerKey{}).(string)
	return trigger
}

// Option configures the default pipeline
type Option func(*defaultPipeline)

// WithClock overrides the clock used to compute the program date
func WithClock(now func() time.Time) Option {
	return func(p *defaultPipeline) {
		p.now = now
	}
}

// WithConcurrency sets how many class-detail calls may be in flight at once
func WithConcurrency(n int) Option {
	return func(p *defaultPipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithTracer sets the tracer used for run and stage spans
func WithTracer(tracer trace.Tracer) Option {
	return func(p *defaultPipeline) {
		p.tracer = tracer
	}
}

type defaultPipeline struct {
	client      studio.Client
	location    *time.Location
	concurrency int
	now         func() time.Time
	tracer      trace.Tracer
}

// NewPipeline creates a pipeline pulling from client. Dates and display
// times use the studio timezone from cfg.
func NewPipeline(client studio.Client, cfg *config.Config, opts ...Option) Pipeline {
	p := &defaultPipeline{
		client:      client,
		location:    cfg.Location(),
		concurrency: cfg.Refresh.Concurrency,
		now:         time.Now,
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run executes one pipeline run
func (p *defaultPipeline) Run(ctx context.Context) (*Result, *Error) {
	runID := uuid.NewString()
	attrs := []attribute.KeyValue{otel.AttrRunID.String(runID)}
	if trigger := TriggerFromContext(ctx); trigger != "" {
		attrs = append(attrs, otel.AttrTrigger.String(trigger))
	}
	ctx, span := otel.StartSpan(ctx, p.tracer, "pipeline.run", trace.WithAttributes(attrs...))
	defer span.End()

	programDate := p.now().In(p.location).Format(programDateLayout)
	logger := slog.With("run_id", runID, "program_date", programDate)
	logger.DebugContext(ctx, "Starting roster pipeline run")

	result, runErr := p.run(ctx, runID, programDate)
	if runErr != nil {
		runErr.RunID = runID
		span.SetAttributes(otel.AttrErrorKind.String(string(runErr.Kind)))
		otel.RecordError(span, runErr)
		return nil, runErr
	}

	span.SetAttributes(
		otel.AttrParticipantCount.Int(result.ParticipantCount),
		otel.AttrStudentCount.Int(len(result.Students)),
	)
	logger.InfoContext(ctx, "Roster pipeline run completed",
		"participant_count", result.ParticipantCount,
		"student_count", len(result.Students))

	return result, nil
}

func (p *defaultPipeline) run(ctx context.Context, runID, programDate string) (*Result, *Error) {
	token, err := p.authenticate(ctx)
	if err != nil {
		return nil, newStageError(StageAuthenticate, err)
	}

	participants, err := p.listParticipants(ctx, token, programDate)
	if err != nil {
		return nil, newStageError(StageListParticipants, err)
	}

	events, err := p.fetchClassDetails(ctx, token, participants, programDate)
	if err != nil {
		return nil, newStageError(StageClassDetails, err)
	}

	students, err := p.aggregate(ctx, participants, events)
	if err != nil {
		return nil, &Error{
			Err:     err,
			Message: fmt.Sprintf("%s: %v", StageAggregate, err),
			Kind:    ErrorKindTimeParse,
			Stage:   StageAggregate,
		}
	}

	return &Result{
		RunID:            runID,
		Students:         students,
		ParticipantCount: len(participants),
	}, nil
}

func (p *defaultPipeline) authenticate(ctx context.Context) (string, error) {
	ctx, span := p.startStage(ctx, StageAuthenticate)
	defer span.End()

	token, err := p.client.Authenticate(ctx)
	otel.RecordError(span, err)
	return token, err
}

func (p *defaultPipeline) listParticipants(ctx context.Context, token, programDate string) ([]studio.Participant, error) {
	ctx, span := p.startStage(ctx, StageListParticipants)
	defer span.End()

	byCategory, err := p.client.ListParticipants(ctx, token, programDate)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	participants := flattenParticipants(byCategory)
	span.SetAttributes(otel.AttrParticipantCount.Int(len(participants)))
	return participants, nil
}

// fetchClassDetails loads the events of every participant. The first failure
// cancels the calls still in flight.
func (p *defaultPipeline) fetchClassDetails(
	ctx context.Context,
	token string,
	participants []studio.Participant,
	selectedDate string,
) ([][]studio.CheckinEvent, error) {
	ctx, span := p.startStage(ctx, StageClassDetails)
	defer span.End()

	events := make([][]studio.CheckinEvent, len(participants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, participant := range participants {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ev, err := p.client.GetClassDetails(gctx, token, participant, selectedDate)
			if err != nil {
				return err
			}
			events[i] = ev
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	return events, nil
}

func (p *defaultPipeline) aggregate(
	ctx context.Context,
	participants []studio.Participant,
	events [][]studio.CheckinEvent,
) ([]roster.Student, error) {
	_, span := p.startStage(ctx, StageAggregate)
	defer span.End()

	students := make([]roster.Student, 0, len(participants))
	for i, participant := range participants {
		student, attended, err := aggregateParticipant(participant, events[i], p.location)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		if attended {
			students = append(students, student)
		}
	}

	sortByStart(students)
	span.SetAttributes(otel.AttrStudentCount.Int(len(students)))
	return students, nil
}

func (p *defaultPipeline) startStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, p.tracer, "pipeline."+stage,
		trace.WithAttributes(otel.AttrStage.String(stage)))
}

// newStageError classifies a studio call failure
func newStageError(stage string, err error) *Error {
	kind := ErrorKindTransport
	var decodeErr *studio.DecodeError
	if errors.As(err, &decodeErr) {
		kind = ErrorKindDecode
	}

	return &Error{
		Err:     err,
		Message: fmt.Sprintf("%s: %v", stage, err),
		Kind:    kind,
		Stage:   stage,
	}
}
