package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

// FileStore keeps document source files and signature images in S3. Keys are
// derived from the content fingerprint, so re-uploading identical bytes is a
// no-op and the fingerprint recorded on the document always matches the
// stored object.
type FileStore struct {
	client *s3.Client
	bucket string
}

func NewFileStore(ctx context.Context, bucket string, region string) (*FileStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return &FileStore{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// Fingerprint is the content hash recorded on documents and compared on
// destruction decisions.
func Fingerprint(content []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(content))
}

// Put stores content under a fingerprint-derived key and returns the object
// URL together with the fingerprint.
func (f *FileStore) Put(ctx context.Context, prefix string, name string, content []byte, contentType string) (string, string, error) {
	fp := Fingerprint(content)
	key := path.Join(prefix, fp, name)

	_, err := f.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(f.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", errors.Wrap(err, "upload object")
	}

	return fmt.Sprintf("s3://%s/%s", f.bucket, key), fp, nil
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrap(err, "download object")
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read object body")
	}
	return content, nil
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	_, err := f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrap(err, "delete object")
}
