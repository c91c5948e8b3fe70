// Package s3dump serves records from JSON objects <prefix><id>.json in an S3 bucket, the
// layout of platform metadata dumps.
package s3dump

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/rpupo63/metadata-catalog/connectors"
	"github.com/rpupo63/metadata-catalog/errs"
)

// ObjectAPI is the subset of the S3 client used by the connector.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Config struct {
	Bucket   string
	Prefix   string
	Platform string
	Resource string
}

type Connector struct {
	client ObjectAPI
	config Config
}

func New(client ObjectAPI, config Config) *Connector {
	return &Connector{client: client, config: config}
}

// NewClient builds an S3 client from the default credential chain. A non-empty endpoint
// selects an S3 compatible store addressed with path-style URLs.
func NewClient(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (c *Connector) Platform() string {
	return c.config.Platform
}

func (c *Connector) Resource() string {
	return c.config.Resource
}

func (c *Connector) key(identifier string) string {
	return c.config.Prefix + identifier + ".json"
}

func (c *Connector) Retrieve(ctx context.Context, identifier string) (connectors.Record, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(c.key(identifier)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return connectors.Record{}, errs.NewNotFound(fmt.Sprintf("%s record %s", c.config.Resource, identifier))
		}
		return connectors.Record{}, errs.NewUpstreamConnectorError(c.config.Platform, identifier, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return connectors.Record{}, errs.NewUpstreamConnectorError(c.config.Platform, identifier, err)
	}
	if !json.Valid(data) {
		return connectors.Record{Identifier: identifier}, errs.NewMalformedRecordError(c.config.Platform, identifier, errors.New("invalid JSON"))
	}
	return connectors.Record{Identifier: identifier, Payload: data}, nil
}

func (c *Connector) Fetch(ctx context.Context, from, to *int) iter.Seq2[connectors.Record, error] {
	return func(yield func(connectors.Record, error) bool) {
		ids, err := c.list(ctx, from, to)
		if err != nil {
			yield(connectors.Record{}, errs.NewUpstreamConnectorError(c.config.Platform, "listing", err))
			return
		}
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

func (c *Connector) list(ctx context.Context, from, to *int) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.config.Bucket),
		Prefix: aws.String(c.config.Prefix),
	})

	var ids []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(object.Key), c.config.Prefix)
			id, ok := strings.CutSuffix(name, ".json")
			if ok && connectors.InRange(id, from, to) {
				ids = append(ids, id)
			}
		}
	}
	connectors.SortIdentifiers(ids)
	return ids, nil
}
