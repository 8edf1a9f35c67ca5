package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options mirror config.StorageConfig so this package stays free of it.
type Options struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

type Client struct {
	s3     *s3.Client
	bucket string
	log    *zap.Logger
}

// New connects to an S3-compatible endpoint (MinIO in development).
func New(ctx context.Context, opts Options, log *zap.Logger) (*Client, error) {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey,
			opts.SecretKey,
			"")),
	)
	if err != nil {
		return nil, err
	}
	endpoint := opts.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &Client{s3: client, bucket: opts.Bucket, log: log}, nil
}

var imageExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
}

func scanKey(classificationID, contentType string) string {
	ext, ok := imageExt[contentType]
	if !ok {
		ext = ".bin"
	}
	return path.Join("scans", classificationID+ext)
}

func reportKey(classificationID string) string {
	return path.Join("reports", classificationID, uuid.NewString()+".json")
}

func (c *Client) ref(key string) string {
	return fmt.Sprintf("s3://%s/%s", c.bucket, key)
}

// PutScan stores the uploaded image next to its classification.
func (c *Client) PutScan(ctx context.Context, classificationID, contentType string, data []byte) (string, error) {
	key := scanKey(classificationID, contentType)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put scan %s: %w", key, err)
	}
	return c.ref(key), nil
}

// PutReport stores a rendered report as JSON.
func (c *Client) PutReport(ctx context.Context, classificationID string, v any) (string, error) {
	key := reportKey(classificationID)
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put report %s: %w", key, err)
	}
	return c.ref(key), nil
}

func parseS3Ref(ref string) (string, string, error) {
	const p = "s3://"
	if !strings.HasPrefix(ref, p) {
		return "", "", fmt.Errorf("bad s3 ref (missing s3://): %q", ref)
	}
	s := strings.TrimPrefix(ref, p)
	slash := strings.IndexByte(s, '/')
	if slash <= 0 || slash == len(s)-1 {
		return "", "", fmt.Errorf("bad s3 ref (need bucket/key): %q", ref)
	}
	return s[:slash], s[slash+1:], nil
}

// GetJSON decodes the object behind ref into out.
func (c *Client) GetJSON(ctx context.Context, ref string, out any) error {
	bucket, key, err := parseS3Ref(ref)
	if err != nil {
		return err
	}
	if bucket != c.bucket {
		return fmt.Errorf("s3 ref %q is outside bucket %q", ref, c.bucket)
	}
	obj, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		c.log.Warn("failed to get s3 object", zap.String("ref", ref), zap.Error(err))
		return err
	}
	defer obj.Body.Close()
	if err := json.NewDecoder(obj.Body).Decode(out); err != nil {
		c.log.Warn("failed to decode s3 object", zap.String("ref", ref), zap.Error(err))
		return err
	}
	c.log.Debug("fetched s3 object", zap.String("ref", ref))
	return nil
}
