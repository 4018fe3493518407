// Package storage keeps uploaded media in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxMediaSize is the largest accepted upload.
const MaxMediaSize = 10 << 20

const presignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

type MediaStore interface {
	// StoreMedia uploads data and returns its public URL.
	StoreMedia(ctx context.Context, name, contentType string, data []byte) (string, error)
	// PresignUpload returns the object key and a short-lived PUT URL.
	PresignUpload(ctx context.Context, name string) (key, url string, err error)
}

type Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
}

type S3MediaStore struct {
	opts Options
	now  func() time.Time
}

func NewS3MediaStore(opts Options) *S3MediaStore {
	return &S3MediaStore{opts: opts, now: time.Now}
}

func (s *S3MediaStore) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.opts.AccessKey,
			s.opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// AllowedContentType reports whether uploads of ct are accepted.
func AllowedContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "image/") || mt == "application/pdf"
}

func (s *S3MediaStore) objectKey(name string) string {
	d := s.now().UTC()
	ext := strings.ToLower(path.Ext(name))
	return fmt.Sprintf("media/%d/%02d/%v%s", d.Year(), d.Month(), uuid.New(), ext)
}

func (s *S3MediaStore) objectURL(key string) string {
	if s.opts.BaseEndpoint == "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key)
	}
	return strings.TrimRight(s.opts.BaseEndpoint, "/") + "/" + s.opts.Bucket + "/" + key
}

// StoreMedia sniffs the content type when ct is empty.
func (s *S3MediaStore) StoreMedia(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", common.NewValidationError("file", "is empty")
	}
	if len(data) > MaxMediaSize {
		return "", fmt.Errorf("%w: media exceeds %d bytes", common.ErrorTooLarge, MaxMediaSize)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !AllowedContentType(contentType) {
		return "", common.NewValidationError("file", "only images and PDF documents are accepted")
	}

	client, err := s.client(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: s3 config: %v", common.ErrorUpstream, err)
	}

	key := s.objectKey(name)
	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put object: %v", common.ErrorUpstream, err)
	}

	return s.objectURL(key), nil
}

// PresignUpload derives the content type from the file extension.
func (s *S3MediaStore) PresignUpload(ctx context.Context, name string) (string, string, error) {
	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if !AllowedContentType(contentType) {
		return "", "", common.NewValidationError("filename", "only images and PDF documents are accepted")
	}

	client, err := s.client(ctx)
	if err != nil {
		return "", "", fmt.Errorf("%w: s3 config: %v", common.ErrorUpstream, err)
	}

	key := s.objectKey(name)
	req, err := presignPutObject(newS3PresignClient(client), ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", fmt.Errorf("%w: presign: %v", common.ErrorUpstream, err)
	}

	return key, req.URL, nil
}
