package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jlaffaye/ftp"

	"github.com/shiurfinder/shiurfinder/internal/config"
)

const contentType = "application/rss+xml"

var ErrPublisherNotConfigured = errors.New("feed publisher not configured")

// Publisher writes a rendered feed to path, replacing what was there.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, path string, body []byte) error
}

// NewPublisher builds the publisher selected by cfg.Target.
func NewPublisher(ctx context.Context, cfg config.FeedConfig) (Publisher, error) {
	switch cfg.Target {
	case config.PublishFTP:
		if cfg.FTP.Host == "" {
			return nil, fmt.Errorf("%w: FTP_HOST is empty", ErrPublisherNotConfigured)
		}
		return &FTPPublisher{cfg: cfg.FTP}, nil
	case config.PublishS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("%w: S3_BUCKET is empty", ErrPublisherNotConfigured)
		}
		return NewS3Publisher(ctx, cfg.S3)
	case config.PublishFile:
		return &FilePublisher{Dir: cfg.LocalDir}, nil
	default:
		return nil, fmt.Errorf("%w: unknown target %q", ErrPublisherNotConfigured, cfg.Target)
	}
}

// FTPPublisher uploads over FTP with one connection per publish.
type FTPPublisher struct {
	cfg config.FTPConfig
}

func (p *FTPPublisher) Name() string { return config.PublishFTP }

func (p *FTPPublisher) Publish(ctx context.Context, path string, body []byte) error {
	addr := p.cfg.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "21")
	}

	timeout := p.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
	if err != nil {
		return fmt.Errorf("failed to connect to ftp %s: %w", addr, err)
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login(p.cfg.User, p.cfg.Password); err != nil {
		return fmt.Errorf("failed to log in to ftp: %w", err)
	}
	if err := conn.Stor(path, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return nil
}

// objectPutter is the part of *s3.Client the publisher uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher writes the feed as an object in an S3-compatible bucket.
type S3Publisher struct {
	client objectPutter
	bucket string
}

func NewS3Publisher(ctx context.Context, cfg config.S3Config) (*S3Publisher, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Publisher{client: client, bucket: cfg.Bucket}, nil
}

func (p *S3Publisher) Name() string { return config.PublishS3 }

func (p *S3Publisher) Publish(ctx context.Context, path string, body []byte) error {
	key := strings.TrimPrefix(path, "/")
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", p.bucket, key, err)
	}
	return nil
}

// FilePublisher writes under Dir. The path is always resolved inside Dir.
type FilePublisher struct {
	Dir string
}

func (p *FilePublisher) Name() string { return config.PublishFile }

func (p *FilePublisher) Publish(ctx context.Context, path string, body []byte) error {
	dst := filepath.Join(p.Dir, filepath.Clean("/"+path))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create feed dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".feed-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write feed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod feed: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to move feed into place: %w", err)
	}
	return nil
}
