package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"linkcore/internal/serializer"
	"linkcore/pkg/domain"
)

// Service dispatches create and delete requests against an adapter while
// keeping inverse links consistent and publishing one change event per
// committed request.
type Service struct {
	adapter    domain.Adapter
	schema     domain.Schema
	serializer domain.Serializer
	transforms map[string]domain.Transform
	sink       domain.ChangeSink
	logger     *zap.Logger
	metrics    MetricsRecorder
	tracer     Tracer

	// onStage observes stage transitions; used by tests.
	onStage func(operation string, trail []Stage)
}

// Option configures a Service.
type Option func(*Service)

// WithSerializer sets the payload parser used by Create.
func WithSerializer(s domain.Serializer) Option {
	return func(svc *Service) { svc.serializer = s }
}

// WithTransform registers an input hook for one record type.
func WithTransform(recordType string, t domain.Transform) Option {
	return func(svc *Service) { svc.transforms[recordType] = t }
}

// WithChangeSink sets where change events are published.
func WithChangeSink(sink domain.ChangeSink) Option {
	return func(svc *Service) { svc.sink = sink }
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(svc *Service) {
		if logger != nil {
			svc.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(svc *Service) {
		if m != nil {
			svc.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(svc *Service) {
		if t != nil {
			svc.tracer = t
		}
	}
}

// NewService validates the schema and constructs a dispatcher.
func NewService(adapter domain.Adapter, schema domain.Schema, opts ...Option) (*Service, error) {
	if adapter == nil {
		return nil, errors.New("adapter cannot be nil")
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	svc := &Service{
		adapter:    adapter,
		schema:     schema,
		serializer: serializer.ByContentType{},
		transforms: make(map[string]domain.Transform),
		sink:       domain.ChangeSinkFunc(func(context.Context, domain.ChangeEvent) {}),
		logger:     zap.NewNop(),
		metrics:    noopMetrics{},
		tracer:     noopTracer{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Schema returns the registry the service validates against.
func (s *Service) Schema() domain.Schema { return s.schema }

// Find reads records straight from the adapter.
func (s *Service) Find(ctx context.Context, recordType string, ids []string, opts *domain.Options) ([]domain.Record, error) {
	if _, ok := s.schema[recordType]; !ok {
		return nil, domain.BadRequestf(recordType, "unknown record type")
	}
	return s.adapter.Find(ctx, recordType, ids, opts)
}

// Create parses, validates, and persists new records, then adds their ids to
// every declared inverse field in the same transaction.
func (s *Service) Create(ctx context.Context, req *domain.Request) (resp *domain.Response, err error) {
	run := newDispatchRun(s.logger, "create", req.Type)
	ctx, finish := s.observe(ctx, run)
	defer func() { finish(err) }()
	defer s.report(run)

	run.enter(StageValidating)
	fields, ok := s.schema[req.Type]
	if !ok {
		return nil, domain.BadRequestf(req.Type, "unknown record type")
	}
	records, err := s.serializer.ParseCreate(ctx, req)
	if err != nil {
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, &domain.Error{Kind: domain.KindBadRequest, Type: req.Type, Message: "cannot parse payload", Err: err}
	}
	if len(records) == 0 {
		return nil, domain.BadRequestf(req.Type, "there are no valid records in the request")
	}
	stripDenormalized(records, fields)
	if err := s.validate(ctx, req.Type, records, fields); err != nil {
		return nil, err
	}

	run.enter(StageAwaitingPrimary)
	if _, ok := s.transforms[req.Type]; ok {
		records, err = s.transform(ctx, req, records)
		if err != nil {
			return nil, err
		}
		// The hook may rewrite links or restore cached inverses.
		stripDenormalized(records, fields)
		if err := s.validate(ctx, req.Type, records, fields); err != nil {
			return nil, err
		}
	}

	run.enter(StageTransacting)
	tx, err := s.adapter.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	created, err := tx.Create(ctx, req.Type, records, req.Options)
	if err != nil {
		return nil, s.abort(ctx, run, tx, err)
	}
	if len(created) == 0 {
		return nil, s.abort(ctx, run, tx, domain.BadRequestf(req.Type, "records could not be created"))
	}
	if len(created) != len(records) {
		return nil, s.abort(ctx, run, tx, domain.Internalf(req.Type, "adapter created %d of %d records", len(created), len(records)))
	}
	for _, record := range created {
		if record.ID() == "" {
			return nil, s.abort(ctx, run, tx, domain.Internalf(req.Type, "an ID on a created record is missing"))
		}
	}

	run.records = len(created)

	run.enter(StageApplyingLinkUpdates)
	batches := BuildUpdates(s.schema, req.Type, created, domain.AddID)
	run.linkUpdates = batches.Len()
	short, err := s.applyUpdates(ctx, tx, batches, req.Options)
	if err != nil {
		return nil, s.abort(ctx, run, tx, err)
	}
	if len(short) > 0 {
		return nil, s.abort(ctx, run, tx, &domain.Error{
			Kind:    domain.KindReferentialIntegrity,
			Type:    short[0],
			Message: "linked records disappeared before their inverse fields were updated",
		})
	}

	run.enter(StageCommitting)
	if err := tx.EndTransaction(ctx, nil); err != nil {
		run.enter(StageAborted)
		return nil, err
	}
	run.enter(StageCommitted)

	event := BuildChangeEvent(domain.MethodCreate, req.Type, domain.RecordIDs(created), batches)
	s.sink.Publish(ctx, event.Clone())
	return &domain.Response{Records: created, Change: event}, nil
}

// Delete removes existing records and strips their ids from every declared
// inverse field in the same transaction.
func (s *Service) Delete(ctx context.Context, req *domain.Request) (resp *domain.Response, err error) {
	run := newDispatchRun(s.logger, "delete", req.Type)
	ctx, finish := s.observe(ctx, run)
	defer func() { finish(err) }()
	defer s.report(run)

	if len(req.IDs) == 0 {
		return nil, domain.BadRequestf(req.Type, "no IDs were specified to be deleted")
	}
	if _, ok := s.schema[req.Type]; !ok {
		return nil, domain.BadRequestf(req.Type, "unknown record type")
	}

	run.enter(StageAwaitingPrimary)
	// Every link field is needed to unlink, so the projection only shapes the response.
	records, err := s.adapter.Find(ctx, req.Type, domain.UniqueIDs(req.IDs), nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.NotFoundf(req.Type, "there are no records to be deleted")
	}
	if _, ok := s.transforms[req.Type]; ok {
		clones := make([]domain.Record, len(records))
		for i, r := range records {
			clones[i] = r.Clone()
		}
		if _, err := s.transform(ctx, req, clones); err != nil {
			return nil, err
		}
	}
	ids := domain.RecordIDs(records)

	run.enter(StageTransacting)
	tx, err := s.adapter.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	if err := tx.Delete(ctx, req.Type, ids, req.Options); err != nil {
		return nil, s.abort(ctx, run, tx, err)
	}

	run.records = len(records)

	run.enter(StageApplyingLinkUpdates)
	batches := BuildUpdates(s.schema, req.Type, records, domain.RemoveID)
	run.linkUpdates = batches.Len()
	short, err := s.applyUpdates(ctx, tx, batches, req.Options)
	if err != nil {
		return nil, s.abort(ctx, run, tx, err)
	}
	if len(short) > 0 {
		run.logger.Warn("inverse targets missing while unlinking", zap.Strings("types", short))
	}

	run.enter(StageCommitting)
	if err := tx.EndTransaction(ctx, nil); err != nil {
		run.enter(StageAborted)
		return nil, err
	}
	run.enter(StageCommitted)

	event := BuildChangeEvent(domain.MethodDelete, req.Type, ids, batches)
	s.sink.Publish(ctx, event.Clone())
	if fields := req.Options.FieldsOrNil(); len(fields) > 0 {
		for i, r := range records {
			records[i] = r.Project(fields)
		}
	}
	return &domain.Response{Records: records, Change: event}, nil
}

func stripDenormalized(records []domain.Record, fields domain.RecordType) {
	for _, field := range fields.Denormalized() {
		for _, record := range records {
			delete(record, field)
		}
	}
}

// validate runs the field enforcer and link checker for every record
// concurrently; the first failure cancels the rest.
func (s *Service) validate(ctx context.Context, recordType string, records []domain.Record, fields domain.RecordType) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, record := range records {
		g.Go(func() error {
			if err := Enforce(recordType, record, fields); err != nil {
				return err
			}
			return CheckLinks(gctx, s.adapter, recordType, record, fields)
		})
	}
	return g.Wait()
}

// transform runs the type's input hook on each record concurrently,
// preserving input order in the result.
func (s *Service) transform(ctx context.Context, req *domain.Request, records []domain.Record) ([]domain.Record, error) {
	hook, ok := s.transforms[req.Type]
	if !ok || hook == nil {
		return records, nil
	}
	out := make([]domain.Record, len(records))
	g, gctx := errgroup.WithContext(ctx)
	for i, record := range records {
		g.Go(func() error {
			transformed, err := hook.Input(gctx, req, record)
			if err != nil {
				return err
			}
			if transformed == nil {
				transformed = record
			}
			out[i] = transformed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// applyUpdates issues one bulk update per affected type. The types are
// disjoint, so the calls run concurrently and are joined before commit. It
// returns the types where the adapter matched fewer records than it was sent.
func (s *Service) applyUpdates(ctx context.Context, tx domain.Transaction, batches *Batches, opts *domain.Options) ([]string, error) {
	types := batches.Types()
	if len(types) == 0 {
		return nil, nil
	}
	matched := make([]int, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		updates := batches.Updates(t)
		g.Go(func() error {
			n, err := tx.Update(gctx, t, updates, opts)
			matched[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var short []string
	for i, t := range types {
		if matched[i] < len(batches.Updates(t)) {
			short = append(short, t)
		}
	}
	return short, nil
}

// abort ends the transaction with cause and returns cause unchanged.
func (s *Service) abort(ctx context.Context, run *dispatchRun, tx domain.Transaction, cause error) error {
	from := run.stage
	run.enter(StageAborting)
	run.logger.Warn("dispatch aborted", zap.Stringer("from", from), zap.Error(cause))
	if err := tx.EndTransaction(ctx, cause); err != nil {
		run.logger.Error("end transaction after failure", zap.Error(err))
	}
	run.enter(StageAborted)
	return cause
}

// observe opens a span for run and returns the func that closes it and
// records the dispatch summary.
func (s *Service) observe(ctx context.Context, run *dispatchRun) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, run.operation, run.recordType)
	return ctx, func(err error) {
		d := run.summary(err, time.Since(start))
		span.End(d)
		s.metrics.RecordDispatch(ctx, d)
	}
}

func (s *Service) report(run *dispatchRun) {
	if s.onStage != nil {
		s.onStage(run.operation, append([]Stage(nil), run.trail...))
	}
}
