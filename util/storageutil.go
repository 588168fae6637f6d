package util

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

const (
	MaxRetryDuration = 30 * time.Second
	RetryMultiplier  = 2.0
)

// StorageOptions selects how the Cloud Storage client talks to the service.
type StorageOptions struct {
	// Protocol is "http" (default) or "grpc".
	Protocol string
	// AccessToken, when set, replaces application default credentials.
	AccessToken string
}

// NewStorageClient creates a client that retries every failed call with
// exponential backoff. Reads of experiment logs are idempotent.
func NewStorageClient(ctx context.Context, opts StorageOptions) (*storage.Client, error) {
	var clientOpts []option.ClientOption
	if opts.AccessToken != "" {
		clientOpts = append(clientOpts, option.WithTokenSource(
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken})))
	}

	var client *storage.Client
	var err error
	switch opts.Protocol {
	case "", "http":
		client, err = storage.NewClient(ctx, clientOpts...)
	case "grpc":
		client, err = storage.NewGRPCClient(ctx, clientOpts...)
	default:
		return nil, fmt.Errorf("unknown client protocol %q", opts.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("while creating the client: %w", err)
	}

	client.SetRetry(
		storage.WithBackoff(gax.Backoff{
			Max:        MaxRetryDuration,
			Multiplier: RetryMultiplier,
		}),
		storage.WithPolicy(storage.RetryAlways),
	)
	return client, nil
}

// ParseBucketAndObjectFromUri parses a GCS URI into a bucket name and object path.
// Example input: gs://bucket-name/path/to/file.txt
func ParseBucketAndObjectFromUri(uri string) (string, string, error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", errors.New("invalid GCS URI, must start with 'gs://'")
	}

	uri = uri[len("gs://"):]

	parts := strings.SplitN(uri, "/", 2)
	if len(parts) != 2 {
		return "", "", errors.New("invalid GCS URI, expected format gs://bucket-name/object-path")
	}

	if parts[0] == "" {
		return "", "", errors.New("bucket name cannot be empty")
	}

	return parts[0], parts[1], nil
}

// UploadObject writes data to the object named by a gs:// URI.
func UploadObject(ctx context.Context, client *storage.Client, uri, contentType string, data []byte) error {
	bucketName, objectPath, err := ParseBucketAndObjectFromUri(uri)
	if err != nil {
		return fmt.Errorf("while parsing output path %s: %w", uri, err)
	}
	if objectPath == "" || strings.HasSuffix(objectPath, "/") {
		return fmt.Errorf("output path %s names a directory, not an object", uri)
	}

	wc := client.Bucket(bucketName).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("while writing to object %s: %w", uri, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("while closing writer for %s: %w", uri, err)
	}
	return nil
}
