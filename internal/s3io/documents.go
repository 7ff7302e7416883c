package s3io

import (
	"context"
	"fmt"
	"time"

	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
)

// ObjectAPI is the subset of the S3 client the document store uses.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Documents stores claim evidence in a single bucket.
type Documents struct {
	S3      ObjectAPI
	Presign Presigner
	Bucket  string
	TTL     time.Duration
}

// NewDocuments wires a document store over an S3 client.
func NewDocuments(client *s3.Client, bucket string, ttl time.Duration) *Documents {
	return &Documents{
		S3:      client,
		Presign: s3.NewPresignClient(client),
		Bucket:  bucket,
		TTL:     ttl,
	}
}

// PresignUpload allocates a key under the claim and presigns a PUT for it.
func (d *Documents) PresignUpload(ctx context.Context, claimID, filename, contentType string) (models.UploadTarget, error) {
	key := BuildKey(claimID, ulid.Make().String(), filename)
	url, headers, err := PresignPut(ctx, d.Presign, d.Bucket, key, contentType, d.TTL)
	if err != nil {
		return models.UploadTarget{}, fmt.Errorf("presign put %s: %w", key, err)
	}
	return models.UploadTarget{
		URL:         url,
		Key:         key,
		ContentType: contentType,
		Headers:     headers,
		ExpiresIn:   int(d.TTL.Seconds()),
	}, nil
}

// List returns every document stored under the claim.
func (d *Documents) List(ctx context.Context, claimID string) ([]models.DocumentInfo, error) {
	items := []models.DocumentInfo{}
	pages := s3.NewListObjectsV2Paginator(d.S3, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.Bucket),
		Prefix: aws.String(Prefix(claimID)),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", claimID, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			_, name, ok := ParseKey(key)
			if !ok {
				continue
			}
			items = append(items, models.DocumentInfo{
				Key:          key,
				Filename:     name,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return items, nil
}

// PresignDownload presigns a GET for key.
func (d *Documents) PresignDownload(ctx context.Context, key string) (string, error) {
	return PresignGet(ctx, d.Presign, d.Bucket, key, d.TTL)
}

// ClaimID extracts the owning claim from an evidence key.
func (d *Documents) ClaimID(key string) (string, bool) {
	claimID, _, ok := ParseKey(key)
	return claimID, ok
}

// Head fetches object metadata for the indexer.
func (d *Documents) Head(ctx context.Context, key string) (*ObjectMetadata, error) {
	return HeadObject(ctx, d.S3, d.Bucket, key)
}

// Probe checks that the bucket is reachable.
func (d *Documents) Probe(ctx context.Context) error {
	_, err := d.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(d.Bucket)})
	return err
}
