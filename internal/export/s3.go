package export

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/logger"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies written files to s3://bucket/prefix/date=YYYY-MM-DD/run=<id>/.
type Uploader struct {
	client objectPutter
	bucket string
	prefix string
	runID  string
	now    func() time.Time
	log    *logger.Entry
}

// NewUploader builds an S3 client from cfg. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
func NewUploader(ctx context.Context, cfg config.S3Config, runID string) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newUploader(client, cfg.Bucket, cfg.Prefix, runID), nil
}

func newUploader(client objectPutter, bucket, prefix, runID string) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		runID:  runID,
		now:    time.Now,
		log:    logger.GetLogger().WithComponent("export.s3"),
	}
}

// Key returns the object key a local file is uploaded under.
func (u *Uploader) Key(file string) string {
	return path.Join(
		u.prefix,
		fmt.Sprintf("date=%s", u.now().UTC().Format("2006-01-02")),
		fmt.Sprintf("run=%s", u.runID),
		filepath.Base(file),
	)
}

// Upload puts the file at its Key and returns the key.
func (u *Uploader) Upload(ctx context.Context, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("open %s for upload: %w", file, err)
	}
	defer f.Close()

	key := u.Key(file)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
		Metadata: map[string]string{
			"run-id": u.runID,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s: %w", file, err)
	}
	u.log.WithFields(logger.Fields{"bucket": u.bucket, "key": key}).Info("uploaded file")
	return key, nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "text/csv"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
