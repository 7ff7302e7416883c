package s3io

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPresigner struct {
	put *s3.PutObjectInput
	ttl time.Duration
	err error
}

func (s *stubPresigner) PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.put = in
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	s.ttl = o.Expires
	signed := http.Header{"Host": {"bucket.s3.test"}}
	if in.ContentType != nil {
		signed.Set("Content-Type", aws.ToString(in.ContentType))
	}
	return &v4.PresignedHTTPRequest{
		URL:          "https://bucket.s3.test/" + url.PathEscape(aws.ToString(in.Key)),
		Method:       "PUT",
		SignedHeader: signed,
	}, nil
}

func (s *stubPresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3.test/" + aws.ToString(in.Key) + "?sig=get", Method: "GET"}, nil
}

type stubObjects struct {
	pages [][]types.Object
	calls int
	head  *s3.HeadObjectOutput
}

func (s *stubObjects) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := s.pages[s.calls]
	s.calls++
	out := &s3.ListObjectsV2Output{Contents: page, IsTruncated: aws.Bool(s.calls < len(s.pages))}
	if s.calls < len(s.pages) {
		out.NextContinuationToken = aws.String("next")
	}
	return out, nil
}

func (s *stubObjects) HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return s.head, nil
}

func (s *stubObjects) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestPresignUploadSignsContentType(t *testing.T) {
	p := &stubPresigner{}
	d := &Documents{Presign: p, Bucket: "evidence", TTL: 5 * time.Minute}

	target, err := d.PresignUpload(context.Background(), "CLM1", "receipt.pdf", "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", target.ContentType)
	assert.Equal(t, 300, target.ExpiresIn)
	assert.Equal(t, "application/pdf", aws.ToString(p.put.ContentType))
	assert.Nil(t, p.put.Metadata)
	assert.Equal(t, map[string]string{"Content-Type": "application/pdf"}, target.Headers)
	assert.Equal(t, 5*time.Minute, p.ttl)

	claimID, name, ok := ParseKey(target.Key)
	require.True(t, ok)
	assert.Equal(t, "CLM1", claimID)
	assert.Equal(t, "receipt.pdf", name)
}

func TestPresignUploadWithoutContentType(t *testing.T) {
	p := &stubPresigner{}
	d := &Documents{Presign: p, Bucket: "evidence", TTL: time.Minute}

	_, err := d.PresignUpload(context.Background(), "CLM1", "notes.txt", "")
	require.NoError(t, err)
	assert.Nil(t, p.put.ContentType)
}

// Every header a real presign signs, other than host, must be handed to the
// uploader; S3 answers SignatureDoesNotMatch for any that is missing.
func TestPresignUploadReturnsEverySignedHeader(t *testing.T) {
	client := s3.New(s3.Options{
		Region: "us-east-1",
		Credentials: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"}, nil
		}),
	})
	d := NewDocuments(client, "evidence", 5*time.Minute)

	target, err := d.PresignUpload(context.Background(), "CLM1", "receipt.pdf", "application/pdf")
	require.NoError(t, err)

	u, err := url.Parse(target.URL)
	require.NoError(t, err)
	signed := strings.Split(u.Query().Get("X-Amz-SignedHeaders"), ";")
	assert.Contains(t, signed, "content-type")
	for _, h := range signed {
		if h == "host" {
			continue
		}
		assert.False(t, strings.HasPrefix(h, "x-amz-meta-"), h)
		assert.Contains(t, target.Headers, http.CanonicalHeaderKey(h))
	}
	assert.Equal(t, "application/pdf", target.Headers["Content-Type"])
}

func TestPresignUploadError(t *testing.T) {
	d := &Documents{Presign: &stubPresigner{err: errors.New("no creds")}, Bucket: "evidence"}
	_, err := d.PresignUpload(context.Background(), "CLM1", "a.txt", "text/plain")
	assert.ErrorContains(t, err, "no creds")
}

func TestListFollowsPagesAndSkipsForeignKeys(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	objs := &stubObjects{pages: [][]types.Object{
		{{Key: aws.String("claims/CLM1/01A-a.jpg"), Size: aws.Int64(10), LastModified: aws.Time(now)}},
		{{Key: aws.String("claims/CLM1/stray"), Size: aws.Int64(1)}, {Key: aws.String("claims/CLM1/01B-b.pdf"), Size: aws.Int64(20)}},
	}}
	d := &Documents{S3: objs, Bucket: "evidence"}

	items, err := d.List(context.Background(), "CLM1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.jpg", items[0].Filename)
	assert.Equal(t, now, items[0].LastModified)
	assert.Equal(t, int64(20), items[1].Size)
}

func TestHeadNormalizesMetadata(t *testing.T) {
	objs := &stubObjects{head: &s3.HeadObjectOutput{
		ContentLength: aws.Int64(42),
		ETag:          aws.String(`"abc"`),
		ContentType:   aws.String("Image/PNG"),
		Metadata:      map[string]string{"Claim_ID": "CLM1"},
	}}
	d := &Documents{S3: objs, Bucket: "evidence"}

	md, err := d.Head(context.Background(), "claims/CLM1/01A-a.png")
	require.NoError(t, err)
	assert.Equal(t, int64(42), md.Size)
	assert.Equal(t, "abc", md.ETag)
	assert.Equal(t, "image/png", md.ContentType)
	assert.Equal(t, "CLM1", md.Meta["claim_id"])
}
