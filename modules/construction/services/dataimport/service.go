// Package dataimport reconciles spreadsheet and delimited-text payloads
// into projects, tasks, resources and budgets.
package dataimport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/buildflow/buildflow/pkg/eventbus"
)

var (
	ErrUnknownFormat         = errors.New("unsupported import payload")
	ErrUnknownDefaultProject = errors.New("default project does not exist")
)

// Options tune one import call.
type Options struct {
	// DefaultProjectID owns dependent rows that carry no project reference
	// at all. Zero disables the fallback.
	DefaultProjectID uint
	// DryRun runs the whole import in one transaction and rolls it back.
	DryRun bool
}

// CompletedEvent is published after every successful import call.
type CompletedEvent struct {
	RunID  uuid.UUID
	Source string
	Format Format
	Counts Counts
	DryRun bool
}

// SheetPlan describes how one table of a payload would be imported.
type SheetPlan struct {
	Sheet string `json:"sheet"`
	Kind  Kind   `json:"kind,omitempty"`
	Rows  int    `json:"rows"`
	// Ignored is set for workbook sheets whose name matches no kind.
	Ignored bool `json:"ignored,omitempty"`
}

type Service struct {
	repos     Repositories
	uow       UnitOfWork
	publisher eventbus.EventBus
	log       *logrus.Entry
	now       func() time.Time
}

func NewService(repos Repositories, uow UnitOfWork, publisher eventbus.EventBus, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		repos:     repos,
		uow:       uow,
		publisher: publisher,
		log:       logger.WithField("component", "dataimport"),
		now:       time.Now,
	}
}

// Import dispatches on the payload format.
func (s *Service) Import(ctx context.Context, filename string, data []byte, opts Options) (*Result, error) {
	switch DetectFormat(filename, data) {
	case FormatWorkbook:
		return s.ImportWorkbook(ctx, filename, data, opts)
	case FormatFlat:
		return s.ImportFlatFile(ctx, filename, data, opts)
	}
	runsTotal.WithLabelValues("unknown", "fatal").Inc()
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filename)
}

// ImportWorkbook imports the Projects sheet first, then rebuilds the name
// index and imports Tasks, Resources and Budgets.
func (s *Service) ImportWorkbook(ctx context.Context, filename string, data []byte, opts Options) (*Result, error) {
	return s.run(ctx, filename, FormatWorkbook, opts, func(ctx context.Context, r *run) error {
		sheets, err := ReadWorkbook(data)
		if err != nil {
			return err
		}
		byKind := map[Kind]*Sheet{}
		for _, sh := range sheets {
			kind, ok := ClassifySheetName(sh.Name)
			if !ok {
				r.report.add(Diagnostic{Sheet: sh.Name, Reason: "sheet name matches no record kind, ignored", Level: LevelInfo})
				continue
			}
			if _, dup := byKind[kind]; dup {
				r.report.add(Diagnostic{Sheet: sh.Name, Kind: kind, Reason: "duplicate sheet for kind, ignored", Level: LevelInfo})
				continue
			}
			byKind[kind] = sh
		}
		if err := r.prepare(ctx); err != nil {
			return err
		}
		if sh, ok := byKind[KindProject]; ok {
			if err := r.importKind(ctx, KindProject, sh); err != nil {
				return err
			}
		}
		for _, kind := range []Kind{KindTask, KindResource, KindBudget} {
			sh, ok := byKind[kind]
			if !ok {
				continue
			}
			if err := r.ensureIndex(ctx); err != nil {
				return err
			}
			if err := r.importKind(ctx, kind, sh); err != nil {
				return err
			}
		}
		return nil
	})
}

// ImportFlatFile imports one delimited table whose kind is inferred from
// its columns.
func (s *Service) ImportFlatFile(ctx context.Context, filename string, data []byte, opts Options) (*Result, error) {
	return s.run(ctx, filename, FormatFlat, opts, func(ctx context.Context, r *run) error {
		sheet, err := ReadFlatFile(filename, data)
		if err != nil {
			return err
		}
		kind, err := ClassifyColumns(sheet.Headers)
		if err != nil {
			return err
		}
		if err := r.prepare(ctx); err != nil {
			return err
		}
		if kind != KindProject {
			if err := r.ensureIndex(ctx); err != nil {
				return err
			}
		}
		return r.importKind(ctx, kind, sheet)
	})
}

// Plan reports how a payload would be classified without touching the store.
// It is gated like Import.
func (s *Service) Plan(ctx context.Context, filename string, data []byte) ([]SheetPlan, error) {
	if err := authorizeImport(ctx, "plan"); err != nil {
		return nil, err
	}
	switch DetectFormat(filename, data) {
	case FormatWorkbook:
		sheets, err := ReadWorkbook(data)
		if err != nil {
			return nil, err
		}
		out := make([]SheetPlan, 0, len(sheets))
		for _, sh := range sheets {
			kind, ok := ClassifySheetName(sh.Name)
			out = append(out, SheetPlan{Sheet: sh.Name, Kind: kind, Rows: len(sh.Rows), Ignored: !ok})
		}
		return out, nil
	case FormatFlat:
		sheet, err := ReadFlatFile(filename, data)
		if err != nil {
			return nil, err
		}
		kind, err := ClassifyColumns(sheet.Headers)
		if err != nil {
			return nil, err
		}
		return []SheetPlan{{Sheet: sheet.Name, Kind: kind, Rows: len(sheet.Rows)}}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filename)
}

// run is the state of one import call.
type run struct {
	svc      *Service
	opts     Options
	uow      UnitOfWork
	report   *report
	counts   Counts
	index    *ProjectIndex
	stale    bool
	resolver *projectResolver
	rows     *rowImporters
}

func (s *Service) run(
	ctx context.Context,
	source string,
	format Format,
	opts Options,
	body func(ctx context.Context, r *run) error,
) (res *Result, err error) {
	if err := authorizeImport(ctx, "import"); err != nil {
		return nil, err
	}

	runID := uuid.New()
	started := s.now()
	log := s.log.WithFields(logrus.Fields{"run_id": runID.String(), "source": source, "format": format})
	r := &run{
		svc:    s,
		opts:   opts,
		uow:    s.uow,
		report: newReport(log),
		counts: newCounts(),
		stale:  true,
	}
	defer func() {
		runDuration.WithLabelValues(string(format)).Observe(s.now().Sub(started).Seconds())
		switch {
		case err != nil:
			runsTotal.WithLabelValues(string(format), "fatal").Inc()
		case opts.DryRun:
			runsTotal.WithLabelValues(string(format), "dry_run").Inc()
		default:
			runsTotal.WithLabelValues(string(format), "ok").Inc()
		}
	}()

	if opts.DryRun {
		outer, err := s.uow.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin dry run: %w", err)
		}
		defer func() { _ = s.uow.Rollback(outer) }()
		ctx = outer
		r.uow = heldUnitOfWork{s.uow}
	}

	if err := body(ctx, r); err != nil {
		log.WithError(err).Error("import failed")
		return nil, err
	}

	res = &Result{RunID: runID, Counts: r.counts, Diagnostics: r.report.diags, DryRun: opts.DryRun}
	log.WithFields(logrus.Fields{
		"projects":  r.counts[KindProject],
		"tasks":     r.counts[KindTask],
		"resources": r.counts[KindResource],
		"budgets":   r.counts[KindBudget],
		"skipped":   res.Skipped(),
	}).Info("import completed")
	if s.publisher != nil {
		s.publisher.Publish("import.completed", &CompletedEvent{
			RunID:  runID,
			Source: source,
			Format: format,
			Counts: r.counts,
			DryRun: opts.DryRun,
		})
	}
	return res, nil
}

// prepare validates the options against the store before any row is read.
func (r *run) prepare(ctx context.Context) error {
	if id := r.opts.DefaultProjectID; id != 0 {
		ok, err := r.svc.repos.Projects.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("check default project: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: id %d", ErrUnknownDefaultProject, id)
		}
	}
	r.rows = &rowImporters{repos: r.svc.repos, now: r.svc.now().UTC()}
	return nil
}

// ensureIndex rebuilds the name index when projects may have changed.
func (r *run) ensureIndex(ctx context.Context) error {
	if !r.stale {
		return nil
	}
	index, err := BuildProjectIndex(ctx, r.svc.repos.Projects)
	if err != nil {
		return err
	}
	r.index = index
	r.stale = false
	r.resolver = newProjectResolver(r.svc.repos.Projects, index, r.opts.DefaultProjectID)
	r.rows.resolver = r.resolver
	r.report.add(Diagnostic{Reason: fmt.Sprintf("project name index built with %d names", index.Len()), Level: LevelDebug})
	return nil
}

func (r *run) importKind(ctx context.Context, kind Kind, sheet *Sheet) error {
	n, err := importSheet(ctx, r.uow, kind, sheet, r.report.scoped(sheet.Name, kind), r.rows.forKind(kind))
	if err != nil {
		return err
	}
	r.counts[kind] += n
	if kind == KindProject && n > 0 {
		r.stale = true
	}
	return nil
}

// heldUnitOfWork nests importer transactions inside an outer one that the
// caller owns: Begin, Commit and Rollback become no-ops.
type heldUnitOfWork struct {
	UnitOfWork
}

func (heldUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (heldUnitOfWork) Commit(context.Context) error                     { return nil }
func (heldUnitOfWork) Rollback(context.Context) error                   { return nil }
