package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/logging"
	"github.com/JonMunkholm/inventory/internal/metrics"
	"github.com/google/uuid"
)

// DefaultImportTimeout bounds a single preview or commit when unset.
const DefaultImportTimeout = 2 * time.Minute

// DefaultPreviewTTL is how long a preview stays confirmable when unset.
const DefaultPreviewTTL = 30 * time.Minute

// Service runs the import pipeline: parse, validate, preview, and on
// confirmation re-validate and commit.
type Service struct {
	store   Store
	cache   PreviewCache
	archive ReceiptArchive
	limiter *ImportLimiter

	limits        Limits
	policy        WarningPolicy
	timeout       time.Duration
	previewTTL    time.Duration
	sweepInterval time.Duration

	now func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithArchive stores a receipt workbook for every committed import.
func WithArchive(a ReceiptArchive) Option {
	return func(s *Service) { s.archive = a }
}

// WithClock replaces time.Now, for code years, 2-digit year pivots and expiry
// in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. cache may be nil, in which case confirm
// accepts only a re-uploaded file.
func NewService(store Store, cache PreviewCache, cfg *config.Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("core: store is required")
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	policy, err := ParseWarningPolicy(cfg.Import.WarningPolicy)
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:   store,
		cache:   cache,
		limiter: NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		limits: Limits{
			MaxFileSize: cfg.Import.MaxFileSize,
			MaxRows:     cfg.Import.MaxRows,
		}.withDefaults(),
		policy:        policy,
		timeout:       cfg.Import.Timeout,
		previewTTL:    cfg.Preview.TTL,
		sweepInterval: cfg.Preview.SweepInterval,
		now:           time.Now,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultImportTimeout
	}
	if s.previewTTL <= 0 {
		s.previewTTL = DefaultPreviewTTL
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Limits returns the file limits in force.
func (s *Service) Limits() Limits {
	return s.limits
}

// PreviewTTL returns how long previews stay confirmable.
func (s *Service) PreviewTTL() time.Duration {
	return s.previewTTL
}

// authorize is the once-per-request permission check. Per-row area
// mismatches are reported by the validator instead.
func authorize(req Requester) error {
	if req.ID == "" || !req.MayImport {
		return ErrPermissionDenied
	}
	return nil
}

// acquire takes a limiter slot and applies the import timeout. The returned
// release func must be called exactly once.
func (s *Service) acquire(ctx context.Context) (context.Context, func(), error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, nil, err
	}
	metrics.ImportsInFlight.Inc()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return ctx, func() {
		cancel()
		metrics.ImportsInFlight.Dec()
		s.limiter.Release()
	}, nil
}

// Preview parses and validates an upload and caches the rows under a new
// token. Rejected rows do not make Preview fail: they are reported in the
// result, which is then not committable. Any earlier preview of the same
// requester is discarded.
func (s *Service) Preview(ctx context.Context, req Requester, up Upload, choice BatchChoice) (*PreviewResult, error) {
	if err := authorize(req); err != nil {
		metrics.RecordPreview("denied", 0, 0, 0)
		return nil, err
	}

	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	log := logging.WithFields(ctx, "requester", req.ID, "file", up.Name)

	choice, err = s.checkBatchChoice(ctx, s.store, choice)
	if err != nil {
		metrics.RecordPreview("invalid_batch", 0, 0, 0)
		return nil, err
	}

	parsed, err := s.parse(ctx, up)
	if err != nil {
		metrics.RecordPreview("file_error", 0, 0, 0)
		log.Info("import file rejected", "error", err)
		return nil, err
	}

	timer := metrics.NewTimer(metrics.StageValidate)
	results, err := NewRowValidator(s.store, req, s.policy).WithClock(s.now).ValidateAll(ctx, parsed.Rows)
	timer.Stop()
	if err != nil {
		metrics.RecordPreview("error", 0, 0, 0)
		return nil, fmt.Errorf("validate rows: %w", err)
	}
	report := Aggregate(results)

	now := s.now()
	entry := PreviewEntry{
		Token:       uuid.NewString(),
		RequesterID: req.ID,
		FileName:    parsed.FileName,
		Rows:        parsed.Rows,
		Choice:      choice,
		Report:      report,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.previewTTL),
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, entry, s.previewTTL); err != nil {
			metrics.RecordPreview("error", 0, 0, 0)
			return nil, fmt.Errorf("store preview: %w", err)
		}
	}

	outcome := "committable"
	if !report.Committable() {
		outcome = "rejected"
	}
	metrics.RecordPreview(outcome, report.ValidCount, report.WarnedCount, report.RejectedCount)

	log.Info("import previewed",
		"token", entry.Token,
		"rows", report.TotalRows,
		"valid", report.ValidCount,
		"warned", report.WarnedCount,
		"rejected", report.RejectedCount,
	)

	result := &PreviewResult{
		FileName:    parsed.FileName,
		ExpiresAt:   entry.ExpiresAt,
		Committable: report.Committable(),
		Report:      report,
	}
	if s.cache != nil {
		result.Token = entry.Token
	}
	return result, nil
}

// parse runs the row parser and records file-level rejections.
func (s *Service) parse(ctx context.Context, up Upload) (*ParsedFile, error) {
	timer := metrics.NewTimer(metrics.StageParse)
	parsed, err := ParseUpload(ctx, up, s.limits)
	timer.Stop()
	if err != nil {
		metrics.RecordFileRejection(FileErrorReason(err))
		return nil, err
	}
	return parsed, nil
}

// checkBatchChoice normalizes the import-level batch choice and, for an
// existing batch, confirms it resolves.
func (s *Service) checkBatchChoice(ctx context.Context, lookup Lookup, choice BatchChoice) (BatchChoice, error) {
	choice.Mode = BatchMode(strings.ToLower(strings.TrimSpace(string(choice.Mode))))
	choice.Code = strings.TrimSpace(choice.Code)
	choice.Description = strings.TrimSpace(choice.Description)

	switch choice.Mode {
	case BatchNone:
		return BatchChoice{}, nil
	case BatchNew:
		choice.Code = ""
		return choice, nil
	case BatchExisting:
		if choice.Code == "" {
			return choice, fmt.Errorf("%w: a batch code is required to use an existing batch", ErrInvalidBatchChoice)
		}
		b, err := lookup.FindBatch(ctx, choice.Code)
		if err != nil {
			return choice, fmt.Errorf("find batch %q: %w", choice.Code, err)
		}
		if b == nil {
			return choice, fmt.Errorf("%w: %s", ErrUnknownBatch, choice.Code)
		}
		choice.Description = ""
		return choice, nil
	default:
		return choice, fmt.Errorf("%w: unknown batch mode %q", ErrInvalidBatchChoice, choice.Mode)
	}
}

// ConfirmRequest identifies the rows to commit: a preview token, or the
// same file uploaded again.
type ConfirmRequest struct {
	Token  string
	Upload *Upload

	// Choice applies only to re-uploaded files; a token carries the choice
	// made at preview time.
	Choice BatchChoice

	Confirmed bool
}

// Confirm re-validates the source rows and commits them all or none.
// On failure the returned result reports zero created records alongside
// the error.
func (s *Service) Confirm(ctx context.Context, req Requester, cr ConfirmRequest) (*CommitResult, error) {
	if !cr.Confirmed {
		return nil, ErrNotConfirmed
	}
	if err := authorize(req); err != nil {
		metrics.RecordCommit("denied")
		return nil, err
	}

	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	src, err := s.commitSource(ctx, req, cr)
	if err != nil {
		return nil, err
	}

	result, err := s.commit(ctx, req, src)
	if err != nil {
		return result, err
	}

	if src.fromCache {
		if err := s.cache.Delete(ctx, src.token); err != nil {
			logging.FromContext(ctx).Warn("failed to evict committed preview", "token", src.token, "error", err)
		}
	}

	s.archiveReceipt(ctx, req, src, result)
	return result, nil
}

// commitSource is the data a commit works from.
type commitSource struct {
	token     string
	fileName  string
	rows      []ImportRow
	choice    BatchChoice
	fromCache bool
}

func (s *Service) commitSource(ctx context.Context, req Requester, cr ConfirmRequest) (commitSource, error) {
	switch {
	case cr.Token != "":
		if s.cache == nil {
			return commitSource{}, ErrPreviewNotFound
		}
		entry, err := s.cache.Get(ctx, cr.Token)
		if err != nil {
			return commitSource{}, err
		}
		// A token only works for the requester who created it.
		if entry.RequesterID != req.ID {
			return commitSource{}, ErrPreviewNotFound
		}
		return commitSource{
			token:     entry.Token,
			fileName:  entry.FileName,
			rows:      entry.Rows,
			choice:    entry.Choice,
			fromCache: true,
		}, nil

	case cr.Upload != nil:
		choice, err := s.checkBatchChoice(ctx, s.store, cr.Choice)
		if err != nil {
			return commitSource{}, err
		}
		parsed, err := s.parse(ctx, *cr.Upload)
		if err != nil {
			return commitSource{}, err
		}
		return commitSource{
			token:    uuid.NewString(),
			fileName: parsed.FileName,
			rows:     parsed.Rows,
			choice:   choice,
		}, nil

	default:
		return commitSource{}, ErrNoFile
	}
}

// Template returns the import template workbook.
func (s *Service) Template() ([]byte, error) {
	return BuildTemplate()
}

// LimiterStatus returns the current import limiter state.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until every active import finishes or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// FileErrorReason returns a short label for a file-level error.
func FileErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrMissingHeaders):
		return "missing_headers"
	case errors.Is(err, ErrTooManyRows):
		return "too_many_rows"
	case errors.Is(err, ErrEmptyFile):
		return "empty"
	case errors.Is(err, ErrNoFile):
		return "no_file"
	default:
		return "other"
	}
}
