package pipeline

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/G-Research/dropingester/internal/common/appcontext"
	commonmetrics "github.com/G-Research/dropingester/internal/common/ingest/metrics"
	"github.com/G-Research/dropingester/internal/common/logging"
	"github.com/G-Research/dropingester/internal/dropingester/dropfolder"
	"github.com/G-Research/dropingester/internal/dropingester/interpret"
	"github.com/G-Research/dropingester/internal/dropingester/metrics"
	"github.com/G-Research/dropingester/internal/dropingester/model"
	"github.com/G-Research/dropingester/internal/dropingester/store"
)

type OutcomeKind string

const (
	OutcomeNoWork          OutcomeKind = "no_work"
	OutcomeIngested        OutcomeKind = "ingested"
	OutcomeStructuralError OutcomeKind = "structural_error"
	OutcomeTransientError  OutcomeKind = "transient_error"
)

// Reasons attached to structural and transient outcomes
const (
	ReasonMissingMetadata  = "missing_metadata"
	ReasonInvalidVariant   = "invalid_variant"
	ReasonMalformedPayload = "malformed_payload"
	ReasonEmptyPayload     = "empty_payload"
	ReasonMetadataLookup   = "metadata_lookup"
	ReasonPersist          = "persist"
)

// Outcome describes what a single RunOnce did.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	// Id of the claimed file, empty when no file was claimed
	FileId string
	// Number of records persisted
	Records int
}

// DidWork is true whenever a file was claimed, whatever happened to it afterwards.
func (o Outcome) DidWork() bool {
	return o.Kind != OutcomeNoWork
}

// FileSource hands out exclusively claimed files and archives them.
type FileSource interface {
	Claim(ctx *appcontext.Context) (*dropfolder.ClaimedFile, error)
	Archive(file *dropfolder.ClaimedFile) error
}

// Persister stores the records of one file atomically.
type Persister interface {
	Persist(ctx *appcontext.Context, records []*model.MessageRecord) error
}

// IngestionPipeline claims one file at a time, turns it into message records and persists them. Every claimed file is
// archived afterwards whether or not processing succeeded, so a bad file can never be picked up again.
type IngestionPipeline struct {
	source          FileSource
	metadata        store.MetadataStore
	persister       Persister
	metrics         *metrics.Metrics
	finalizeTimeout time.Duration
}

func NewIngestionPipeline(
	source FileSource,
	metadata store.MetadataStore,
	persister Persister,
	metrics *metrics.Metrics,
	finalizeTimeout time.Duration,
) *IngestionPipeline {
	return &IngestionPipeline{
		source:          source,
		metadata:        metadata,
		persister:       persister,
		metrics:         metrics,
		finalizeTimeout: finalizeTimeout,
	}
}

// RunOnce processes at most one file. Structural and transient failures are logged and reported through the
// outcome. A returned error means the claim or archive step failed, or ctx was cancelled.
func (p *IngestionPipeline) RunOnce(ctx *appcontext.Context) (outcome Outcome, err error) {
	file, err := p.source.Claim(ctx)
	if err != nil {
		return Outcome{Kind: OutcomeNoWork}, err
	}
	if file == nil {
		ctx.Log.Debug("No files found to process.")
		return Outcome{Kind: OutcomeNoWork}, nil
	}

	ctx = appcontext.WithLogField(ctx, "file", file.Id)
	defer func() {
		finalizeErr := p.finalize(ctx, file)
		if err == nil {
			err = finalizeErr
		}
		// Cancellation that lands while finalizing must still reach the caller.
		if err == nil {
			err = ctx.Err()
		}
	}()

	outcome, err = p.process(ctx, file)
	outcome.FileId = file.Id
	p.metrics.RecordOutcome(string(outcome.Kind), outcome.Reason)
	return outcome, err
}

// process returns an error only when ctx itself is done. A store error whose cause is its own
// deadline is transient like any other.
func (p *IngestionPipeline) process(ctx *appcontext.Context, file *dropfolder.ClaimedFile) (Outcome, error) {
	meta, err := p.metadata.LookupMetadata(ctx, file.Id)
	if err != nil {
		if ctx.Err() != nil {
			return transient(ReasonMetadataLookup), ctx.Err()
		}
		p.metrics.RecordDBError(commonmetrics.DBOperationRead)
		logging.WithStacktrace(ctx.Log, err).Errorf("Error looking up metadata for file %s. Archiving as error.", file.Id)
		return transient(ReasonMetadataLookup), nil
	}
	if meta == nil {
		ctx.Log.Warnf("No metadata found for file %s. Archiving as error.", file.Id)
		return structural(ReasonMissingMetadata), nil
	}

	variant, err := model.ParseVariant(meta.FileType)
	if err != nil {
		ctx.Log.WithError(err).Warnf("Invalid file type %q for file %s. Archiving as error.", meta.FileType, file.Id)
		return structural(ReasonInvalidVariant), nil
	}
	ctx = appcontext.WithLogField(ctx, "variant", variant)
	ctx.Log.Infof("Processing %s file %s (customer %d)", variant, file.Id, meta.CustomerId)

	items, err := interpret.Interpret(file.Content, variant)
	if errors.Is(err, interpret.ErrEmptyPayload) {
		ctx.Log.Warnf("No messages found in %s file %s", variant, file.Id)
		return structural(ReasonEmptyPayload), nil
	}
	if err != nil {
		ctx.Log.WithError(err).Warnf("Could not interpret %s file %s. Archiving as error.", variant, file.Id)
		return structural(ReasonMalformedPayload), nil
	}
	ctx.Log.Infof("Found %d messages", len(items))

	records := interpret.ToRecords(meta, variant, items)
	start := time.Now()
	if err := p.persister.Persist(ctx, records); err != nil {
		if ctx.Err() != nil {
			return transient(ReasonPersist), ctx.Err()
		}
		logging.WithStacktrace(ctx.Log, err).Errorf("Error persisting %d messages from file %s", len(records), file.Id)
		return transient(ReasonPersist), nil
	}
	p.metrics.RecordPersisted(string(variant), len(records), time.Since(start))
	ctx.Log.Infof("Successfully processed file %s", file.Id)
	return Outcome{Kind: OutcomeIngested, Records: len(records)}, nil
}

// finalize archives the file, releases it and marks its metadata archived. It is detached from ctx
// cancellation, so a shutdown that arrives part way through cannot leave an archived file unmarked. The
// finalize timeout bounds it instead.
func (p *IngestionPipeline) finalize(ctx *appcontext.Context, file *dropfolder.ClaimedFile) error {
	ctx, cancel := appcontext.WithTimeout(appcontext.WithoutCancel(ctx), p.finalizeTimeout)
	defer cancel()

	var result *multierror.Error
	archived := func() bool {
		// The file must still be held while it moves, or another worker could claim it again.
		defer func() {
			if err := file.Release(); err != nil {
				result = multierror.Append(result, errors.WithMessagef(err, "error releasing %s", file.Path))
			}
		}()
		if err := p.source.Archive(file); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "error archiving %s", file.Path))
			return false
		}
		return true
	}()

	if archived {
		if err := p.metadata.MarkArchived(ctx, file.Id); err != nil {
			p.metrics.RecordDBError(commonmetrics.DBOperationUpdate)
			logging.WithStacktrace(ctx.Log, err).Errorf("Error marking file %s as archived", file.Id)
		}
	}
	return result.ErrorOrNil()
}

func structural(reason string) Outcome {
	return Outcome{Kind: OutcomeStructuralError, Reason: reason}
}

func transient(reason string) Outcome {
	return Outcome{Kind: OutcomeTransientError, Reason: reason}
}
