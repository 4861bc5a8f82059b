package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mvs-go/internal/mvs"
)

// S3Vault stores blobs as S3 objects under an optional key prefix. Large
// frames are uploaded through the multipart upload manager.
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

var _ mvs.BlobVault = (*S3Vault)(nil)

// S3Options configures an S3Vault. AccessKeyID/SecretAccessKey are optional;
// when empty the SDK's default credential chain applies.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Vault creates an S3-backed vault for the given bucket.
func NewS3Vault(ctx context.Context, name string, opts S3Options) (*S3Vault, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Vault{
		name:     name,
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (v *S3Vault) objectKey(key string) string {
	if v.prefix == "" {
		return key
	}
	return path.Join(v.prefix, key)
}

// Put uploads a blob. S3 object writes are atomic: the object is only
// visible under its key once the upload completes, which satisfies the
// stage-then-publish requirement without a temp location.
func (v *S3Vault) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	counted := &countingReader{r: r}
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(key)),
		Body:   counted,
	})
	if err != nil {
		return mvs.IOFailuref("blob", key, err, "uploading blob to s3")
	}
	if counted.n != size {
		return mvs.IOFailuref("blob", key, nil, "size mismatch: expected %d bytes, uploaded %d", size, counted.n)
	}
	return nil
}

// Get downloads the blob stored under key and writes it to w.
func (v *S3Vault) Get(ctx context.Context, key string, w io.Writer) error {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return mvs.NotFoundf("blob", key, "blob not found")
		}
		return mvs.IOFailuref("blob", key, err, "fetching blob from s3")
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return mvs.IOFailuref("blob", key, err, "reading blob from s3")
	}
	return nil
}

// Delete removes the blob stored under key. S3 deletes are silent for
// missing keys, so existence is checked first to keep the NotFound contract.
func (v *S3Vault) Delete(ctx context.Context, key string) error {
	objKey := v.objectKey(key)
	_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return mvs.NotFoundf("blob", key, "blob not found")
		}
		return mvs.IOFailuref("blob", key, err, "checking blob before delete")
	}

	if _, err := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
	}); err != nil {
		return mvs.IOFailuref("blob", key, err, "deleting blob from s3")
	}
	return nil
}

// ValidateSetup verifies the bucket is reachable with the given credentials.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	}); err != nil {
		return mvs.IOFailuref("vault", v.name, err, "s3 bucket %s not accessible", v.bucket)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
