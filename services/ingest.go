package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rpupo63/metadata-catalog/catalog"
	"github.com/rpupo63/metadata-catalog/connectors"
	"github.com/rpupo63/metadata-catalog/database"
	"github.com/rpupo63/metadata-catalog/errs"
)

// RecordError is a record that could not be ingested.
type RecordError struct {
	Identifier string `json:"identifier"`
	Err        error  `json:"-"`
	Message    string `json:"error"`
}

// Report summarises one synchronisation run of a connector.
type Report struct {
	RunID      uuid.UUID     `json:"run_id"`
	Platform   string        `json:"platform"`
	Resource   string        `json:"resource"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Failed     int           `json:"failed"`
	Errors     []RecordError `json:"errors,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

func (r *Report) fail(identifier string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RecordError{Identifier: identifier, Err: err, Message: err.Error()})
}

// PullResult is the outcome of ingesting a single record on demand.
type PullResult struct {
	Identifier uint   `json:"identifier"`
	Outcome    string `json:"outcome"`
}

// Ingestor stores connector records in the catalog, updating records the platform already
// supplied and creating the others.
type Ingestor struct {
	db          *database.Database
	connectors  *connectors.Registry
	metrics     *Metrics
	parallelism int
}

// NewIngestor creates an Ingestor. parallelism bounds how many connectors SyncAll runs at once;
// values below one run them one at a time.
func NewIngestor(db *database.Database, registry *connectors.Registry, metrics *Metrics, parallelism int) *Ingestor {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Ingestor{
		db:          db,
		connectors:  registry,
		metrics:     metrics,
		parallelism: parallelism,
	}
}

func (i *Ingestor) Connectors() *connectors.Registry {
	return i.connectors
}

// Sync ingests every record c yields with a numeric identifier in [from, to).
//
// Parameters:
//   - c: The connector to read from. Its resource must be registered in the catalog.
//   - from, to: Optional identifier bounds; nil leaves that side open.
//
// Returns:
//   - *Report: Counts of created, updated and failed records. A failed record is logged and
//     collected in the report, and the run continues with the next record.
//   - error: Non-nil only when the run could not start or ctx was cancelled. The report
//     still describes the records handled before that.
func (i *Ingestor) Sync(ctx context.Context, c connectors.Connector, from, to *int) (*Report, error) {
	report := &Report{
		RunID:     uuid.New(),
		Platform:  c.Platform(),
		Resource:  c.Resource(),
		StartedAt: time.Now().UTC(),
	}
	logger := log.With().
		Str("runID", report.RunID.String()).
		Str("platform", report.Platform).
		Str("resource", report.Resource).
		Logger()

	store, ok := i.db.Store(c.Resource())
	if !ok {
		report.FinishedAt = time.Now().UTC()
		return report, errs.NewUnknownConnectorError(c.Platform(), c.Resource())
	}
	i.metrics.run(report.Platform, report.Resource)
	logger.Info().Msg("Starting synchronisation")

	var runErr error
	for record, err := range c.Fetch(ctx, from, to) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = ctxErr
			break
		}
		if err != nil {
			logger.Error().Err(err).Str("recordID", record.Identifier).Msg("Failed to fetch record")
			report.fail(record.Identifier, err)
			i.metrics.record(report.Platform, report.Resource, OutcomeFailed)
			continue
		}

		result, err := i.store(ctx, store, c.Platform(), record)
		if err != nil {
			logger.Error().Err(err).Str("recordID", record.Identifier).Msg("Failed to store record")
			report.fail(record.Identifier, err)
			i.metrics.record(report.Platform, report.Resource, OutcomeFailed)
			continue
		}
		switch result.Outcome {
		case OutcomeCreated:
			report.Created++
		case OutcomeUpdated:
			report.Updated++
		}
		i.metrics.record(report.Platform, report.Resource, result.Outcome)
	}

	report.FinishedAt = time.Now().UTC()
	logger.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("failed", report.Failed).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Finished synchronisation")
	return report, runErr
}

// SyncAll runs Sync for every registered connector, at most parallelism at a time.
//
// Returns:
//   - []*Report: One report per connector, in the order of connectors.Registry.All.
//   - error: The errors of runs that could not start or were cancelled, joined. A run that
//     fails does not stop the others.
func (i *Ingestor) SyncAll(ctx context.Context, from, to *int) ([]*Report, error) {
	all := i.connectors.All()
	reports := make([]*Report, len(all))

	var (
		mu       sync.Mutex
		failures []error
	)
	var group errgroup.Group
	group.SetLimit(i.parallelism)
	for n, c := range all {
		group.Go(func() error {
			report, err := i.Sync(ctx, c, from, to)
			reports[n] = report
			if err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s/%s: %w", c.Platform(), c.Resource(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return reports, errors.Join(failures...)
}

// Pull retrieves one record from the connector registered for platform and resource and
// stores it.
func (i *Ingestor) Pull(ctx context.Context, platform, resource, identifier string) (*PullResult, error) {
	c, ok := i.connectors.Get(platform, resource)
	if !ok {
		return nil, errs.NewUnknownConnectorError(platform, resource)
	}
	store, ok := i.db.Store(resource)
	if !ok {
		return nil, errs.NewUnknownConnectorError(platform, resource)
	}

	record, err := c.Retrieve(ctx, identifier)
	if err != nil {
		i.metrics.record(platform, resource, OutcomeFailed)
		var apiErr *errs.ApiErr
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, errs.NewUpstreamConnectorError(platform, identifier, err)
	}

	result, err := i.store(ctx, store, platform, record)
	if err != nil {
		i.metrics.record(platform, resource, OutcomeFailed)
		return nil, err
	}
	i.metrics.record(platform, resource, result.Outcome)
	log.Info().
		Str("platform", platform).
		Str("resource", resource).
		Str("recordID", identifier).
		Uint("identifier", result.Identifier).
		Str("outcome", result.Outcome).
		Msg("Pulled record")
	return result, nil
}

// store writes record as a resource of store, stamped with platform and the record's
// identifier. A resource already registered under that pair is replaced.
func (i *Ingestor) store(ctx context.Context, store database.Store, platform string, record connectors.Record) (*PullResult, error) {
	payload, err := decodePayload(platform, record)
	if err != nil {
		return nil, err
	}
	for field, related := range record.Related {
		if payload[field], err = i.storeRelated(ctx, store.Descriptor(), platform, record.Identifier, field, related); err != nil {
			return nil, err
		}
	}
	body, err := stamp(platform, record.Identifier, payload)
	if err != nil {
		return nil, err
	}

	existing, found, err := store.FindByPlatform(ctx, platform, record.Identifier)
	if err != nil {
		return nil, err
	}
	if found {
		if _, err := store.UpdateJSON(ctx, existing, body); err != nil {
			return nil, err
		}
		return &PullResult{Identifier: existing, Outcome: OutcomeUpdated}, nil
	}

	created, err := store.CreateJSON(ctx, body)
	if err != nil {
		return nil, err
	}
	return &PullResult{Identifier: created, Outcome: OutcomeCreated}, nil
}

// storeRelated ingests the records a platform supplied for one relationship field of owner
// and returns the field value referencing them: an identifier list, or a single identifier
// for a single relationship.
func (i *Ingestor) storeRelated(ctx context.Context, owner *catalog.Descriptor, platform, identifier, field string, related []connectors.Record) (json.RawMessage, error) {
	spec, ok := i.db.Registry().RelationshipsOf(owner.Name)[field]
	if !ok {
		return nil, errs.NewMalformedRecordError(platform, identifier, fmt.Errorf("%s has no relationship %q", owner.Name, field))
	}
	target, ok := i.db.Registry().ByTable(spec.Target)
	if !ok || spec.Deserializer != catalog.FindByIdentifier {
		return nil, errs.NewMalformedRecordError(platform, identifier, fmt.Errorf("related records cannot be stored for %s.%s", owner.Name, field))
	}
	if spec.Arity == catalog.Single && len(related) != 1 {
		return nil, errs.NewMalformedRecordError(platform, identifier, fmt.Errorf("%s.%s takes exactly one related record, got %d", owner.Name, field, len(related)))
	}
	store, ok := i.db.Store(target.Name)
	if !ok {
		return nil, errs.NewMalformedRecordError(platform, identifier, fmt.Errorf("no store for %s", target.Name))
	}

	ids := make([]uint, 0, len(related))
	for _, r := range related {
		result, err := i.store(ctx, store, platform, r)
		if err != nil {
			return nil, fmt.Errorf("related %s %s: %w", target.Name, r.Identifier, err)
		}
		ids = append(ids, result.Identifier)
	}
	if spec.Arity == catalog.Single {
		return json.Marshal(ids[0])
	}
	return json.Marshal(ids)
}

func decodePayload(platform string, record connectors.Record) (map[string]json.RawMessage, error) {
	if record.Identifier == "" {
		return nil, errs.NewMalformedRecordError(platform, record.Identifier, errors.New("record has no identifier"))
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(record.Payload, &payload); err != nil || payload == nil {
		if err == nil {
			err = errors.New("payload is not an object")
		}
		return nil, errs.NewMalformedRecordError(platform, record.Identifier, err)
	}
	return payload, nil
}

// stamp sets platform and platform_identifier on the payload, overriding whatever the
// payload carried.
func stamp(platform, identifier string, payload map[string]json.RawMessage) ([]byte, error) {
	var err error
	if payload["platform"], err = json.Marshal(platform); err != nil {
		return nil, err
	}
	if payload["platform_identifier"], err = json.Marshal(identifier); err != nil {
		return nil, err
	}
	return json.Marshal(payload)
}
