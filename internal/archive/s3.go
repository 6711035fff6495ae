package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"workspace-commerce/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// S3API is the part of the S3 client the archiver uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Archiver writes gzipped invoices to an S3 bucket.
type s3Archiver struct {
	client S3API
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Archiver creates an S3 archiver using the default AWS credential chain.
func NewS3Archiver(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Archiver, error) {
	logger = logger.With().Str("component", "invoice-s3-archive").Logger()

	// Load AWS configuration
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 archiver initialised")

	return NewS3ArchiverWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewS3ArchiverWithClient creates an S3 archiver around an existing client.
func NewS3ArchiverWithClient(client S3API, bucket, prefix string, logger zerolog.Logger) Archiver {
	return &s3Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

func (a *s3Archiver) key(invoiceNumber string) string {
	return a.prefix + objectKey(invoiceNumber)
}

// Archive uploads the invoice document.
func (a *s3Archiver) Archive(ctx context.Context, invoice *model.Invoice) error {
	data, err := encode(invoice)
	if err != nil {
		return err
	}

	key := a.key(invoice.InvoiceNumber)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		a.logger.Error().
			Err(err).
			Str("bucket", a.bucket).
			Str("key", key).
			Msg("failed to put object to S3")
		return fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", a.bucket, key, err)
	}

	a.logger.Debug().
		Str("invoice_number", invoice.InvoiceNumber).
		Str("key", key).
		Msg("invoice archived to S3")

	return nil
}

// Load downloads an archived invoice.
func (a *s3Archiver) Load(ctx context.Context, invoiceNumber string) (*model.Invoice, error) {
	key := a.key(invoiceNumber)

	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, fmt.Errorf("%w: %s", ErrNotArchived, invoiceNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", a.bucket, key, err)
	}
	defer result.Body.Close()

	return decode(result.Body)
}
