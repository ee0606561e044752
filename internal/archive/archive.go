// -------------------------------------------------------------------------------
// Archive - Sync Report Upload to S3-Compatible Storage
//
// Author: Alex Freidah
//
// Stores each completed sync report as a JSON object so operators keep a
// history of backfill runs outside either database. Works with any
// S3-compatible endpoint (AWS, MinIO, B2) through a custom base endpoint.
// Objects are keyed <prefix>/<started-at RFC3339>-<run id>.json.
// -------------------------------------------------------------------------------

package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/Alaric-Jeff/Records-Information/internal/config"
	"github.com/Alaric-Jeff/Records-Information/internal/storage"
	"github.com/Alaric-Jeff/Records-Information/internal/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
)

const contentTypeJSON = "application/json"

// putObjectAPI is the subset of the S3 client used for uploads.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Compile-time check: *S3Archiver satisfies storage.ReportSink.
var _ storage.ReportSink = (*S3Archiver)(nil)

// S3Archiver uploads sync reports to a bucket.
type S3Archiver struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3Archiver builds an archiver from configuration.
func NewS3Archiver(cfg config.ArchiveConfig) *S3Archiver {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: cfg.ForcePathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &S3Archiver{
		client: s3.New(opts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
}

// ObjectKey returns the key for a report started at t. runID keeps runs that
// start within the same second from sharing a key.
func (a *S3Archiver) ObjectKey(t time.Time, runID string) string {
	return path.Join(a.prefix, t.UTC().Format(time.RFC3339)+"-"+runID+".json")
}

// newRunID returns a short random identifier for one archived report.
func newRunID() string {
	return uuid.NewString()[:8]
}

// StoreReport serializes report and uploads it.
func (a *S3Archiver) StoreReport(ctx context.Context, report *storage.SyncReport) error {
	key := a.ObjectKey(report.StartedAt, newRunID())

	ctx, span := telemetry.StartSpan(ctx, "Archive StoreReport",
		telemetry.AttrOperation.String("archive"),
		telemetry.AttrSyncTotal.Int(report.Total),
	)
	defer span.End()

	body, err := json.Marshal(reportDocument{
		Total:     report.Total,
		Succeeded: report.Succeeded,
		Failed:    len(report.Failures),
		Errors:    report.Errors(),
		StartedAt: report.StartedAt.UTC(),
		Duration:  report.Duration.String(),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentTypeJSON),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("failed to upload report %s: %w", key, err)
	}
	return nil
}

// reportDocument is the archived JSON shape.
type reportDocument struct {
	Total     int       `json:"total_records"`
	Succeeded int       `json:"synced_count"`
	Failed    int       `json:"failed_count"`
	Errors    []string  `json:"errors"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}
