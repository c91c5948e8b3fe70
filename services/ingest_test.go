package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rpupo63/metadata-catalog/connectors"
	"github.com/rpupo63/metadata-catalog/connectors/example"
	"github.com/rpupo63/metadata-catalog/database"
	"github.com/rpupo63/metadata-catalog/errs"
	"github.com/rpupo63/metadata-catalog/models"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	registry, err := models.NewRegistry()
	require.NoError(t, err)
	d, err := database.New(db, registry, database.Config{})
	require.NoError(t, err)
	require.NoError(t, d.Migrate(context.Background()))
	return d
}

// fakeConnector serves records from memory; an entry in failures is yielded as an error.
type fakeConnector struct {
	platform string
	resource string
	records  []connectors.Record
	failures map[string]error
}

func (f *fakeConnector) Platform() string { return f.platform }
func (f *fakeConnector) Resource() string { return f.resource }

func (f *fakeConnector) Retrieve(ctx context.Context, identifier string) (connectors.Record, error) {
	if err, ok := f.failures[identifier]; ok {
		return connectors.Record{}, err
	}
	for _, r := range f.records {
		if r.Identifier == identifier {
			return r, nil
		}
	}
	return connectors.Record{}, errs.NewNotFound("record " + identifier)
}

func (f *fakeConnector) Fetch(ctx context.Context, from, to *int) iter.Seq2[connectors.Record, error] {
	return func(yield func(connectors.Record, error) bool) {
		for _, r := range f.records {
			if !connectors.InRange(r.Identifier, from, to) {
				continue
			}
			if err, ok := f.failures[r.Identifier]; ok {
				if !yield(connectors.Record{Identifier: r.Identifier}, err) {
					return
				}
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func datasetRecord(id, name string) connectors.Record {
	payload := fmt.Sprintf(
		`{"name": %q, "description": "from a platform", "same_as": "https://example.com/%s", "platform": "zenodo", "platform_identifier": "other"}`,
		name, id,
	)
	return connectors.Record{Identifier: id, Payload: []byte(payload)}
}

func TestIngestor_Sync(t *testing.T) {
	d := newTestDatabase(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	c := &fakeConnector{
		platform: "example",
		resource: models.DatasetName,
		records: []connectors.Record{
			datasetRecord("1", "first"),
			datasetRecord("2", "second"),
			{Identifier: "3", Payload: []byte(`[1, 2]`)},
			{Identifier: "4", Payload: []byte(`{"name": "no description"}`)},
			datasetRecord("5", "fifth"),
		},
		failures: map[string]error{"5": errors.New("connection reset")},
	}
	ingestor := NewIngestor(d, connectors.NewRegistry(c), metrics, 2)
	ctx := context.Background()

	report, err := ingestor.Sync(ctx, c, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 3, report.Failed)
	require.Len(t, report.Errors, 3)
	assert.Equal(t, "3", report.Errors[0].Identifier)
	assert.True(t, errs.IsMalformedRecordError(report.Errors[0].Err))
	assert.Equal(t, "4", report.Errors[1].Identifier)
	assert.True(t, errs.IsValidationError(report.Errors[1].Err))
	assert.Equal(t, "5", report.Errors[2].Identifier)
	assert.NotEqual(t, report.RunID.String(), "")

	datasets, _ := d.Store(models.DatasetName)
	id, found, err := datasets.FindByPlatform(ctx, "example", "1")
	require.NoError(t, err)
	assert.True(t, found, "the platform pair of the connector overrides the payload")
	_, found, err = datasets.FindByPlatform(ctx, "zenodo", "other")
	require.NoError(t, err)
	assert.False(t, found)

	c.records[0] = datasetRecord("1", "renamed")
	delete(c.failures, "5")
	again, err := ingestor.Sync(ctx, c, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Created)
	assert.Equal(t, 2, again.Updated)
	assert.NotEqual(t, report.RunID, again.RunID)

	count, err := datasets.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	read, err := datasets.Get(ctx, id)
	require.NoError(t, err)
	encoded, err := read.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"name":"renamed"`)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.records.WithLabelValues("example", models.DatasetName, OutcomeCreated)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.records.WithLabelValues("example", models.DatasetName, OutcomeUpdated)))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.records.WithLabelValues("example", models.DatasetName, OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.runs.WithLabelValues("example", models.DatasetName)))
}

func TestIngestor_SyncRange(t *testing.T) {
	d := newTestDatabase(t)
	c := &fakeConnector{
		platform: "example",
		resource: models.DatasetName,
		records: []connectors.Record{
			datasetRecord("1", "one"),
			datasetRecord("2", "two"),
			datasetRecord("3", "three"),
		},
	}
	ingestor := NewIngestor(d, connectors.NewRegistry(c), nil, 1)

	from, to := 2, 3
	report, err := ingestor.Sync(context.Background(), c, &from, &to)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Zero(t, report.Failed)
}

func TestIngestor_SyncUnknownResource(t *testing.T) {
	d := newTestDatabase(t)
	c := &fakeConnector{platform: "example", resource: "spaceship"}
	ingestor := NewIngestor(d, connectors.NewRegistry(c), nil, 1)

	report, err := ingestor.Sync(context.Background(), c, nil, nil)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Zero(t, report.Created)
}

func TestIngestor_SyncCancelled(t *testing.T) {
	d := newTestDatabase(t)
	c := &fakeConnector{
		platform: "example",
		resource: models.DatasetName,
		records:  []connectors.Record{datasetRecord("1", "one")},
	}
	ingestor := NewIngestor(d, connectors.NewRegistry(c), nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := ingestor.Sync(ctx, c, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Created)
}

func TestIngestor_SyncAll(t *testing.T) {
	d := newTestDatabase(t)
	files := fstest.MapFS{
		"news/1.json":    {Data: []byte(`{"title": "launch", "body": "b", "section": "s", "headline": "h", "word_count": 10}`)},
		"dataset/1.json": {Data: []byte(`{"name": "ex", "description": "d", "same_as": "https://example.com/d/1"}`)},
	}
	discovered, err := example.Discover(files, []string{models.DatasetName, models.NewsName})
	require.NoError(t, err)
	registry := connectors.NewRegistry()
	for _, c := range discovered {
		registry.Add(c)
	}
	registry.Add(&fakeConnector{platform: "zenodo", resource: "spaceship"})

	ingestor := NewIngestor(d, registry, nil, 4)
	reports, err := ingestor.SyncAll(context.Background(), nil, nil)
	require.Error(t, err, "the run of an unknown resource fails")
	assert.Contains(t, err.Error(), "zenodo/spaceship")
	require.Len(t, reports, 3)

	assert.Equal(t, models.DatasetName, reports[0].Resource)
	assert.Equal(t, 1, reports[0].Created)
	assert.Equal(t, "zenodo", reports[2].Platform)
}

func TestIngestor_Pull(t *testing.T) {
	d := newTestDatabase(t)
	c := &fakeConnector{
		platform: "example",
		resource: models.DatasetName,
		records:  []connectors.Record{datasetRecord("7", "seven")},
		failures: map[string]error{"8": errors.New("timeout talking to platform")},
	}
	ingestor := NewIngestor(d, connectors.NewRegistry(c), nil, 1)
	ctx := context.Background()

	result, err := ingestor.Pull(ctx, "example", models.DatasetName, "7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome)

	again, err := ingestor.Pull(ctx, "example", models.DatasetName, "7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, again.Outcome)
	assert.Equal(t, result.Identifier, again.Identifier)

	_, err = ingestor.Pull(ctx, "example", models.DatasetName, "8")
	require.Error(t, err)
	assert.True(t, errs.IsUpstreamConnectorError(err))

	_, err = ingestor.Pull(ctx, "example", models.DatasetName, "9")
	assert.True(t, errs.IsNotFound(err))

	_, err = ingestor.Pull(ctx, "openml", models.DatasetName, "7")
	assert.True(t, errs.IsNotFound(err))
}

func TestIngestor_SyncRelated(t *testing.T) {
	d := newTestDatabase(t)
	withCitation := datasetRecord("1", "cited")
	withCitation.Related = map[string][]connectors.Record{
		"citation": {
			{Identifier: "p1", Payload: []byte(`{"title": "first paper"}`)},
			{Identifier: "p2", Payload: []byte(`{"title": "second paper"}`)},
		},
	}
	unknownField := datasetRecord("2", "unknown field")
	unknownField.Related = map[string][]connectors.Record{"nothing": {{Identifier: "x", Payload: []byte(`{}`)}}}
	namedTarget := datasetRecord("3", "named target")
	namedTarget.Related = map[string][]connectors.Record{"keyword": {{Identifier: "k", Payload: []byte(`{"name": "k"}`)}}}

	c := &fakeConnector{
		platform: "example",
		resource: models.DatasetName,
		records:  []connectors.Record{withCitation, unknownField, namedTarget},
	}
	ingestor := NewIngestor(d, connectors.NewRegistry(c), nil, 1)
	ctx := context.Background()

	report, err := ingestor.Sync(ctx, c, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Errors, 2)
	assert.True(t, errs.IsMalformedRecordError(report.Errors[0].Err))
	assert.True(t, errs.IsMalformedRecordError(report.Errors[1].Err))

	datasets, _ := d.Store(models.DatasetName)
	publications, _ := d.Store(models.PublicationName)
	first, found, err := publications.FindByPlatform(ctx, "example", "p1")
	require.NoError(t, err)
	require.True(t, found)
	second, found, err := publications.FindByPlatform(ctx, "example", "p2")
	require.NoError(t, err)
	require.True(t, found)

	id, found, err := datasets.FindByPlatform(ctx, "example", "1")
	require.NoError(t, err)
	require.True(t, found)
	out, err := datasets.Get(ctx, id)
	require.NoError(t, err)
	encoded, err := json.Marshal(out)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(encoded, &got))
	assert.ElementsMatch(t, []any{float64(first), float64(second)}, got["citation"])

	again, err := ingestor.Sync(ctx, c, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Updated)
	count, err := publications.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count, "related records are updated in place")
}

func TestIngestor_PullRelatedSingle(t *testing.T) {
	d := newTestDatabase(t)
	event := connectors.Record{
		Identifier: "e1",
		Payload: []byte(`{"name": "workshop", "description": "d", "registration_url": "https://example.com/e1",
			"location": "online"}`),
		Related: map[string][]connectors.Record{
			"organiser": {{Identifier: "o1", Payload: []byte(`{"name": "ACME"}`)}},
		},
	}
	twoOrganisers := connectors.Record{
		Identifier: "e2",
		Payload:    event.Payload,
		Related: map[string][]connectors.Record{
			"organiser": {{Identifier: "o1", Payload: []byte(`{"name": "ACME"}`)}, {Identifier: "o2", Payload: []byte(`{"name": "Other"}`)}},
		},
	}
	c := &fakeConnector{platform: "example", resource: models.EventName, records: []connectors.Record{event, twoOrganisers}}
	ingestor := NewIngestor(d, connectors.NewRegistry(c), nil, 1)
	ctx := context.Background()

	result, err := ingestor.Pull(ctx, "example", models.EventName, "e1")
	require.NoError(t, err)

	organisations, _ := d.Store(models.OrganisationName)
	organiser, found, err := organisations.FindByPlatform(ctx, "example", "o1")
	require.NoError(t, err)
	require.True(t, found)

	var row models.Event
	require.NoError(t, d.DB().First(&row, result.Identifier).Error)
	require.NotNil(t, row.OrganiserIdentifier)
	assert.Equal(t, organiser, *row.OrganiserIdentifier)

	_, err = ingestor.Pull(ctx, "example", models.EventName, "e2")
	assert.True(t, errs.IsMalformedRecordError(err))
}
