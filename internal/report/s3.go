package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/txconflict/configs"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads the JSON report and, when present, the block details file.
type S3Sink struct {
	client     S3PutObjectAPI
	bucket     string
	prefix     string
	blocksPath string
}

func NewS3Client(ctx context.Context, cfg config.ReportS3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			}, nil
		})))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Sink(client S3PutObjectAPI, cfg config.ReportS3Config, blocksPath string) *S3Sink {
	return &S3Sink{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		blocksPath: blocksPath,
	}
}

func (s *S3Sink) Name() string {
	return "s3"
}

func (s *S3Sink) Publish(ctx context.Context, report Report) error {
	data, err := report.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	reportKey := s.objectKey(report.GeneratedAt, "dependency_analysis.json")
	if err := s.put(ctx, reportKey, bytes.NewReader(data), "application/json", report); err != nil {
		return err
	}

	if s.blocksPath == "" {
		return nil
	}
	file, err := os.Open(s.blocksPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open block details: %w", err)
	}
	defer file.Close()
	return s.put(ctx, s.objectKey(report.GeneratedAt, "block_details.parquet"), file, "application/octet-stream", report)
}

func (s *S3Sink) put(ctx context.Context, key string, body io.ReadSeeker, contentType string, report Report) error {
	checksum, err := calculateChecksum(body)
	if err != nil {
		return err
	}
	chains := ""
	for i, chain := range report.Chains {
		if i > 0 {
			chains += ","
		}
		chains += chain.Chain
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"chains":         chains,
			"window_seconds": fmt.Sprintf("%d", report.WindowSeconds),
			"generated_at":   report.GeneratedAt.Format(time.RFC3339),
			"checksum":       checksum,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	log.Info().Str("bucket", s.bucket).Str("key", key).Msg("Uploaded report artifact")
	return nil
}

func (s *S3Sink) objectKey(generatedAt time.Time, name string) string {
	return path.Join(s.prefix, fmt.Sprintf("date=%s", generatedAt.Format("2006-01-02")), fmt.Sprintf("%d_%s", generatedAt.Unix(), name))
}

// calculateChecksum hashes the body and rewinds it for the upload.
func calculateChecksum(body io.ReadSeeker) (string, error) {
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to seek to beginning of body: %w", err)
	}
	hash := sha256.New()
	if _, err := io.Copy(hash, body); err != nil {
		return "", fmt.Errorf("failed to read body for checksum: %w", err)
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind body: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
