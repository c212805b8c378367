// Package uploads stores profile pictures in S3-compatible object storage.
package uploads

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/gophauth/internal/server/config"
)

var ErrEmptyFile = errors.New("empty file")

// Result identifies a stored object.
type Result struct {
	PublicID string
	URL      string
}

// Uploader persists file under publicID. file is a data URI or plain base64.
type Uploader interface {
	Upload(ctx context.Context, publicID, file string) (*Result, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

const keyPrefix = "profiles/"

type S3Uploader struct {
	client   *s3.Client
	bucket   string
	endpoint string
}

func NewS3Uploader(ctx context.Context, cfg *sc.Config) (*S3Uploader, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		// MinIO serves buckets under the path, not as subdomains.
		o.UsePathStyle = true
	})

	return &S3Uploader{
		client:   client,
		bucket:   cfg.S3Bucket,
		endpoint: strings.TrimRight(cfg.S3BaseEndpoint, "/"),
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, publicID, file string) (*Result, error) {
	body, contentType, err := decodeFile(file)
	if err != nil {
		return nil, err
	}

	key := keyPrefix + publicID
	_, err = putObject(u.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put error: %w", err)
	}

	return &Result{PublicID: publicID, URL: u.objectURL(key)}, nil
}

func (u *S3Uploader) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", u.endpoint, u.bucket, key)
}

// decodeFile accepts "data:<type>;base64,<data>" or bare base64.
func decodeFile(file string) ([]byte, string, error) {
	contentType := "application/octet-stream"
	data := file

	if rest, ok := strings.CutPrefix(file, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("unsupported data uri")
		}
		if t := strings.TrimSuffix(meta, ";base64"); t != "" {
			contentType = t
		}
		data = payload
	}

	body, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode file: %w", err)
	}
	if len(body) == 0 {
		return nil, "", ErrEmptyFile
	}
	return body, contentType, nil
}
