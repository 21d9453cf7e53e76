package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/kiln/pkg/component"
)

// ObjectGetter is the subset of *s3.Client used by S3Source.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ ObjectGetter = (*s3.Client)(nil)

// S3Config describes the bucket holding component documents.
type S3Config struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint overrides the service endpoint, for S3-compatible stores.
	Endpoint string

	// PathStyle addresses the bucket in the URL path instead of the host.
	PathStyle bool

	// MaxSize bounds the size of one document in bytes (0 = 1 MiB).
	MaxSize int64
}

const defaultMaxDocumentSize = 1 << 20

// NewS3Client builds a client from cfg. Credentials come from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN; without
// them requests are sent anonymously.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); id != "" && secret != "" {
		creds := aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "kiln environment",
		}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	}
	return s3.New(opts)
}

// S3Source reads documents from a bucket. A component named "card" is
// stored under <prefix>card.yaml, <prefix>card.yml or <prefix>card.toml.
type S3Source struct {
	client  ObjectGetter
	bucket  string
	prefix  string
	maxSize int64
	cache   *cache
}

// NewS3Source reads documents through client.
func NewS3Source(client ObjectGetter, cfg S3Config) *S3Source {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxDocumentSize
	}
	s := &S3Source{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		maxSize: maxSize,
	}
	s.cache = newCache(s)
	return s
}

func (s *S3Source) fetch(ctx context.Context, name string) (string, []byte, error) {
	for _, ext := range Extensions {
		key := s.prefix + name + ext
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var missing *types.NoSuchKey
			if errors.As(err, &missing) {
				continue
			}
			return "", nil, fmt.Errorf("s3 get %s: %w", key, err)
		}
		data, err := s.read(out.Body)
		if err != nil {
			return "", nil, fmt.Errorf("s3 read %s: %w", key, err)
		}
		return key, data, nil
	}
	return "", nil, fmt.Errorf("%w: s3://%s/%s%s", ErrNotFound, s.bucket, s.prefix, name)
}

var errDocumentTooLarge = errors.New("document too large")

func (s *S3Source) read(body io.ReadCloser) ([]byte, error) {
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, s.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxSize {
		return nil, errDocumentTooLarge
	}
	return data, nil
}

// Load returns the definition for name, fetching it on first use.
func (s *S3Source) Load(ctx context.Context, name string) (*component.Definition, error) {
	return s.cache.load(ctx, name)
}

// Lazy returns a loader that fetches name at mount time with the mount's
// context.
func (s *S3Source) Lazy(name string) component.Loader {
	return s.cache.loader(name)
}

// Reload drops the cached definition for name.
func (s *S3Source) Reload(name string) {
	s.cache.forget(name)
}
