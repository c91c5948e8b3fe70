// Package example serves records from JSON files on disk, one directory per resource. It
// backs the "example" platform used for demos and tests.
package example

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"strings"

	"github.com/rpupo63/metadata-catalog/connectors"
	"github.com/rpupo63/metadata-catalog/errs"
)

const Platform = "example"

// Connector reads <id>.json files from one directory.
type Connector struct {
	files    fs.FS
	dir      string
	resource string
}

// New reads the records of resource from dir within files.
func New(files fs.FS, dir, resource string) *Connector {
	return &Connector{files: files, dir: dir, resource: resource}
}

// Discover returns a connector for every directory of root whose name is one of resources.
func Discover(files fs.FS, resources []string) ([]*Connector, error) {
	known := make(map[string]bool, len(resources))
	for _, r := range resources {
		known[r] = true
	}

	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("read example directory: %w", err)
	}
	var out []*Connector
	for _, entry := range entries {
		if entry.IsDir() && known[entry.Name()] {
			out = append(out, New(files, entry.Name(), entry.Name()))
		}
	}
	return out, nil
}

func (c *Connector) Platform() string {
	return Platform
}

func (c *Connector) Resource() string {
	return c.resource
}

func (c *Connector) Retrieve(ctx context.Context, identifier string) (connectors.Record, error) {
	if err := ctx.Err(); err != nil {
		return connectors.Record{}, err
	}
	if identifier == "" || strings.ContainsAny(identifier, `/\`) {
		return connectors.Record{}, errs.NewNotFound(fmt.Sprintf("%s record %q", c.resource, identifier))
	}

	data, err := fs.ReadFile(c.files, path.Join(c.dir, identifier+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return connectors.Record{}, errs.NewNotFound(fmt.Sprintf("%s record %s", c.resource, identifier))
	}
	if err != nil {
		return connectors.Record{}, err
	}
	if !json.Valid(data) {
		return connectors.Record{Identifier: identifier}, errs.NewMalformedRecordError(Platform, identifier, errors.New("invalid JSON"))
	}
	return connectors.Record{Identifier: identifier, Payload: data}, nil
}

func (c *Connector) Fetch(ctx context.Context, from, to *int) iter.Seq2[connectors.Record, error] {
	return func(yield func(connectors.Record, error) bool) {
		entries, err := fs.ReadDir(c.files, c.dir)
		if err != nil {
			yield(connectors.Record{}, err)
			return
		}

		var ids []string
		for _, entry := range entries {
			id, ok := strings.CutSuffix(entry.Name(), ".json")
			if entry.IsDir() || !ok || !connectors.InRange(id, from, to) {
				continue
			}
			ids = append(ids, id)
		}
		connectors.SortIdentifiers(ids)

		for _, id := range ids {
			if ctx.Err() != nil {
				yield(connectors.Record{}, ctx.Err())
				return
			}
			if !yield(c.Retrieve(ctx, id)) {
				return
			}
		}
	}
}
