package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"uploadflow/internal/upload"
)

// Client implements upload.TransferCoordinator against S3-compatible
// storage (AWS or MinIO via a custom endpoint).
type Client struct {
	s3Client *s3.Client
	bucket   string
}

func NewClient(ctx context.Context, region, bucket, accessKey, secretKey, endpoint string) (*Client, error) {
	var cfg aws.Config
	var err error

	if accessKey != "" && secretKey != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		)
	} else {
		// Fall back to the default chain (instance profile, ECS task role).
		cfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{s3Client: s3Client, bucket: bucket}, nil
}

func (c *Client) Open(ctx context.Context, key, mimeType string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}
	if mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}

	result, err := c.s3Client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", &upload.TransferError{Phase: upload.PhaseOpen, Err: err}
	}
	return *result.UploadId, nil
}

func (c *Client) UploadPart(ctx context.Context, key, transferID string, partNumber int32, body io.Reader, size int64) (string, error) {
	result, err := c.s3Client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(transferID),
		PartNumber:    aws.Int32(partNumber),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		// A part landing after an abort fails harmlessly; the abort already
		// discarded everything.
		if isNoSuchUpload(err) {
			return "", nil
		}
		return "", &upload.TransferError{Phase: upload.PhaseUploadPart, Err: err}
	}
	return aws.ToString(result.ETag), nil
}

func (c *Client) Commit(ctx context.Context, key, transferID string, parts []upload.Part) error {
	completedParts := make([]s3Types.CompletedPart, len(parts))
	for i, part := range parts {
		completedParts[i] = s3Types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(part.PartNumber),
		}
	}

	_, err := c.s3Client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(transferID),
		MultipartUpload: &s3Types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		return &upload.TransferError{Phase: upload.PhaseCommit, Err: err}
	}
	return nil
}

func (c *Client) Abort(ctx context.Context, key, transferID string) error {
	_, err := c.s3Client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(transferID),
	})
	if err != nil && !isNoSuchUpload(err) {
		return &upload.TransferError{Phase: upload.PhaseAbort, Err: err}
	}
	return nil
}

func isNoSuchUpload(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchUpload"
}
