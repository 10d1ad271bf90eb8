package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/snarg/lecture-pipeline/internal/config"
)

// S3Store serves lecture media from an S3-compatible object store via
// presigned GET URLs.
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	prefix        string
	cfg           config.S3Config
	audioParam    string
	log           zerolog.Logger
}

// NewS3Store creates an S3 media store from config.
func NewS3Store(cfg config.S3Config, audioParam string, log zerolog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		cfg:           cfg,
		audioParam:    audioParam,
		log:           log.With().Str("component", "s3-store").Logger(),
	}, nil
}

// HeadBucket checks that the bucket exists and credentials are valid.
func (s *S3Store) HeadBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: &s.bucket,
	})
	return err
}

// AudioLocator presigns the audio rendition of mediaRef when one exists in the
// bucket (same key, audio extension), otherwise the media object itself.
func (s *S3Store) AudioLocator(ctx context.Context, mediaRef string) (string, error) {
	if mediaRef == "" {
		return "", fmt.Errorf("%w: empty media reference", ErrMediaNotFound)
	}
	key := s.objectKey(mediaRef)

	if ext := audioExtension(s.audioParam); ext != "" {
		audioKey := strings.TrimSuffix(key, path.Ext(key)) + ext
		if s.exists(ctx, audioKey) {
			return s.presign(ctx, audioKey)
		}
	}

	if !s.exists(ctx, key) {
		return "", fmt.Errorf("%w: s3://%s/%s", ErrMediaNotFound, s.bucket, key)
	}
	return s.presign(ctx, key)
}

func (s *S3Store) Type() string { return "s3" }

func (s *S3Store) presign(ctx context.Context, key string) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.cfg.PresignExpiry
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) exists(ctx context.Context, key string) bool {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("head object failed")
		return false
	}
	return true
}

func (s *S3Store) objectKey(ref string) string {
	ref = strings.TrimPrefix(ref, "/")
	if s.prefix == "" {
		return ref
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + ref
}
