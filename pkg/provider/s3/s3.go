// Package s3 uploads images to any S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/spf13/afero"

	"github.com/radiofrance/imgtag/pkg/logger"
	"github.com/radiofrance/imgtag/pkg/provider"
)

const (
	Name                 = "s3"
	defaultPresignExpiry = 7 * 24 * time.Hour
)

func init() {
	provider.Register(Name, New)
}

// Options is the provider_config of the s3 provider.
type Options struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	// PathStyle is required by most S3-compatible servers (MinIO, Ceph...).
	PathStyle bool   `mapstructure:"path_style"`
	Prefix    string `mapstructure:"prefix"`
	// BaseURL is the CDN origin serving the bucket, e.g. a CloudFront distribution.
	BaseURL string `mapstructure:"base_url"`
	// ACL is a canned ACL such as "public-read". Left unset for buckets enforcing object ownership.
	ACL         string `mapstructure:"acl"`
	Fingerprint bool   `mapstructure:"fingerprint"`
	// Presign returns time-limited GET URLs for private buckets.
	Presign       bool          `mapstructure:"presign"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// objectAPI is the subset of *s3.Client the provider relies on.
type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Provider uploads images missing from the bucket and returns their URL.
type Provider struct {
	client    objectAPI
	presigner *s3.PresignClient
	cfg       provider.Config
	opts      Options
}

// New is the provider.Factory of the s3 provider. Credentials come from the default AWS chain.
func New(ctx context.Context, cfg provider.Config) (provider.Provider, error) {
	opts, err := parseOptions(cfg)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("can't load AWS config: %w", err)
	}

	if opts.Region == "" {
		opts.Region = awsCfg.Region
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})

	return &Provider{
		client:    client,
		presigner: s3.NewPresignClient(client),
		cfg:       cfg,
		opts:      opts,
	}, nil
}

// NewWithClient builds a provider on top of an existing client. Presigning is unavailable.
func NewWithClient(client objectAPI, cfg provider.Config) (*Provider, error) {
	opts, err := parseOptions(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Presign {
		return nil, errors.New("presigned URLs require a client created by the s3 provider")
	}

	return &Provider{
		client: client,
		cfg:    cfg,
		opts:   opts,
	}, nil
}

func parseOptions(cfg provider.Config) (Options, error) {
	var opts Options
	if err := cfg.Decode(&opts); err != nil {
		return opts, err
	}

	if opts.Bucket == "" {
		return opts, errors.New("bucket name is required for S3 upload")
	}
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = defaultPresignExpiry
	}

	return opts, nil
}

func (p *Provider) RemoteLink(ctx context.Context, localPath string) (string, error) {
	key, err := provider.ObjectKey(p.cfg, localPath, p.opts.Prefix, p.opts.Fingerprint)
	if err != nil {
		return "", err
	}

	exists, err := p.objectExists(ctx, key)
	if err != nil {
		return "", err
	}

	if exists {
		logger.Debugf("s3://%s/%s already exists, skipping upload", p.opts.Bucket, key)
	} else {
		if err := p.UploadFile(ctx, localPath, key); err != nil {
			return "", err
		}
		logger.Infof("Uploaded %s to s3://%s/%s", filepath.Base(localPath), p.opts.Bucket, key)
	}

	return p.url(ctx, key)
}

func (p *Provider) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.opts.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return false, nil
	}

	return false, fmt.Errorf("can't send S3 HEAD request: %w", err)
}

// UploadFile sends the file at filePath to the bucket under targetPath.
func (p *Provider) UploadFile(ctx context.Context, filePath, targetPath string) error {
	buffer, err := afero.ReadFile(p.cfg.FS(), filePath)
	if err != nil {
		return fmt.Errorf("can't read file %s: %w", filePath, err)
	}

	size := int64(len(buffer))
	query := &s3.PutObjectInput{
		Bucket:        aws.String(p.opts.Bucket),
		Key:           aws.String(targetPath),
		Body:          bytes.NewReader(buffer),
		ContentLength: &size,
		ContentType:   aws.String(contentType(filePath, buffer)),
	}
	if p.opts.ACL != "" {
		query.ACL = types.ObjectCannedACL(p.opts.ACL)
	}
	if p.opts.Fingerprint {
		query.CacheControl = aws.String("public, max-age=31536000, immutable")
	}

	if _, err := p.client.PutObject(ctx, query); err != nil {
		return fmt.Errorf("can't send S3 PUT request: %w", err)
	}

	return nil
}

func (p *Provider) url(ctx context.Context, key string) (string, error) {
	switch {
	case p.opts.BaseURL != "":
		return provider.JoinURL(p.opts.BaseURL, key), nil
	case p.opts.Presign:
		presigned, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(p.opts.Bucket),
			Key:    aws.String(key),
		}, func(o *s3.PresignOptions) {
			o.Expires = p.opts.PresignExpiry
		})
		if err != nil {
			return "", fmt.Errorf("can't generate presigned URL: %w", err)
		}
		return presigned.URL, nil
	case p.opts.Endpoint != "":
		return provider.JoinURL(p.opts.Endpoint, p.opts.Bucket+"/"+key), nil
	default:
		return provider.JoinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", p.opts.Bucket, p.opts.Region), key), nil
	}
}

func contentType(filePath string, content []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(filePath)); byExt != "" {
		return byExt
	}

	return http.DetectContentType(content)
}
