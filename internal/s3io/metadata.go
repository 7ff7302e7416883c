package s3io

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectMetadata holds S3 object metadata and user-defined metadata.
type ObjectMetadata struct {
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Meta         map[string]string // lowercased user metadata
}

// HeadObject fetches object metadata including user-defined metadata.
func HeadObject(ctx context.Context, api ObjectAPI, bucket, key string) (*ObjectMetadata, error) {
	ho, err := api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}

	m := &ObjectMetadata{
		Size:         aws.ToInt64(ho.ContentLength),
		ETag:         strings.Trim(aws.ToString(ho.ETag), "\""),
		ContentType:  strings.ToLower(aws.ToString(ho.ContentType)),
		LastModified: aws.ToTime(ho.LastModified),
		Meta:         make(map[string]string, len(ho.Metadata)),
	}
	for k, v := range ho.Metadata {
		m.Meta[strings.ToLower(k)] = v
	}
	return m, nil
}
