// Package s3io provides the S3-backed evidence store: presigned uploads and
// downloads, listings, and key helpers.
package s3io

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigner defines the interface for presigning S3 requests.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// PresignPut generates a presigned URL for uploading an object, along with
// the headers the PUT has to carry. A non-empty contentType is signed, so S3
// rejects a PUT carrying any other Content-Type.
func PresignPut(ctx context.Context, p Presigner, bucket, key, contentType string, ttl time.Duration) (string, map[string]string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		// No object metadata: x-amz-meta-* would become signed headers the
		// client has to echo. Encryption comes from the bucket default.
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := p.PresignPutObject(ctx, input, func(o *s3.PresignOptions) { o.Expires = ttl })
	if err != nil {
		return "", nil, err
	}
	return req.URL, UploadHeaders(req.SignedHeader), nil
}

// PresignGet generates a presigned URL for downloading an object.
func PresignGet(ctx context.Context, p Presigner, bucket, key string, ttl time.Duration) (string, error) {
	req, err := p.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = ttl })
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
