// Package s3store keeps run artifacts in S3 and audits the markdown export
// layout of a bucket. Production uses the AWS SDK defaults or an explicit
// endpoint; tests use gofakes3.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/obs"
)

// auditConcurrency bounds the HeadObject calls in flight during an audit.
const auditConcurrency = 8

// Store wraps an S3 client bound to one bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// Config holds the settings for New.
type Config struct {
	// Endpoint overrides the S3 endpoint, e.g. a local S3-compatible server.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Bucket          string
	// UsePathStyle is required by most S3-compatible servers.
	UsePathStyle bool
}

// New builds a Store. Empty keys fall back to the SDK's credential chain.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errs.New(errs.InvalidArgument, "s3 bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewFromClient(client, cfg.Bucket), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *s3.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

func (s *Store) Bucket() string { return s.bucket }

// Put stores body under key.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("put s3://%s/%s", s.bucket, key), err)
	}
	obs.From(ctx).With("pkg", "s3store").Info("object stored", "bucket", s.bucket, "key", key, "bytes", len(body))
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, errs.Wrap(errs.Unavailable, fmt.Sprintf("head s3://%s/%s", s.bucket, key), err)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// ListFolders returns the immediate sub-prefixes of prefix, each ending in
// "/", sorted.
func (s *Store) ListFolders(ctx context.Context, prefix string) ([]string, error) {
	prefix = folderPrefix(prefix)
	var folders []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.Unavailable, fmt.Sprintf("list s3://%s/%s", s.bucket, prefix), err)
		}
		for _, cp := range page.CommonPrefixes {
			folders = append(folders, aws.ToString(cp.Prefix))
		}
	}
	sort.Strings(folders)
	return folders, nil
}

func folderPrefix(prefix string) string {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// FolderCheck is the audit result for one folder.
type FolderCheck struct {
	Folder string
	XMLKey string
	Found  bool
	Err    error
}

// AuditReport lists every folder under a prefix and whether its XML exists.
type AuditReport struct {
	Bucket  string
	Prefix  string
	Folders []FolderCheck
}

// Missing returns the checks whose XML file was absent or unreadable.
func (r AuditReport) Missing() []FolderCheck {
	var out []FolderCheck
	for _, f := range r.Folders {
		if !f.Found {
			out = append(out, f)
		}
	}
	return out
}

// OK reports a non-empty audit with every XML present.
func (r AuditReport) OK() bool {
	return len(r.Folders) > 0 && len(r.Missing()) == 0
}

// XMLKey is where the markdown export of folder keeps its XML manifest:
// "<prefix><name>/<name>.xml".
func XMLKey(folder string) string {
	name := path.Base(strings.TrimSuffix(folder, "/"))
	return folder + name + ".xml"
}

// AuditMarkdownFolders checks every folder directly under prefix for its
// "<name>/<name>.xml" file. Per-folder lookup errors are recorded in the
// report; only a failed listing is returned as an error.
func (s *Store) AuditMarkdownFolders(ctx context.Context, prefix string) (AuditReport, error) {
	logger := obs.From(ctx).With("pkg", "s3store")
	report := AuditReport{Bucket: s.bucket, Prefix: folderPrefix(prefix)}

	folders, err := s.ListFolders(ctx, prefix)
	if err != nil {
		return report, err
	}
	if len(folders) == 0 {
		logger.Warn("no folders under prefix", "bucket", s.bucket, "prefix", report.Prefix)
		return report, nil
	}

	report.Folders = make([]FolderCheck, len(folders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(auditConcurrency)
	for i, folder := range folders {
		g.Go(func() error {
			check := FolderCheck{Folder: folder, XMLKey: XMLKey(folder)}
			check.Found, check.Err = s.Exists(gctx, check.XMLKey)
			report.Folders[i] = check
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range report.Folders {
		switch {
		case f.Err != nil:
			logger.Error("xml lookup failed", "key", f.XMLKey, "error", f.Err)
		case f.Found:
			logger.Info("xml found", "key", f.XMLKey)
		default:
			logger.Warn("xml missing", "key", f.XMLKey)
		}
	}
	return report, nil
}
