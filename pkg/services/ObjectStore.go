package services

import (
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/adamgokit/s3/createbucketoptions"
	"github.com/adampresley/adamgokit/s3/listoptions"
	"github.com/adampresley/adamgokit/slices"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

/*
ObjectStorer is the slice of object storage the publisher uses.
*/
type ObjectStorer interface {
	EnsureBucket(bucket string) error
	List(bucket, prefix string) (map[string]time.Time, error)
	Put(bucket, key string, body io.Reader) error
}

type S3ObjectStoreConfig struct {
	Region   string
	S3Client s3.S3Client
}

type S3ObjectStore struct {
	region   string
	s3Client s3.S3Client
}

func NewS3ObjectStore(config S3ObjectStoreConfig) S3ObjectStore {
	return S3ObjectStore{
		region:   config.Region,
		s3Client: config.S3Client,
	}
}

func (s S3ObjectStore) EnsureBucket(bucketName string) error {
	var (
		err    error
		exists bool
	)

	exists, err = s.s3Client.BucketExists(bucketName)

	if err != nil {
		return fmt.Errorf("error ensuring bucket '%s' exists: %w", bucketName, err)
	}

	if exists {
		return nil
	}

	slog.Info("creating bucket", "bucketName", bucketName)

	err = s.s3Client.CreateBucket(
		bucketName,
		createbucketoptions.WithRegion(s.region),
	)

	if err != nil {
		return fmt.Errorf("error creating bucket '%s': %w", bucketName, err)
	}

	return nil
}

/*
List returns the last modified time of every AVIF object under prefix,
keyed by object key.
*/
func (s S3ObjectStore) List(bucket, prefix string) (map[string]time.Time, error) {
	var (
		err      error
		response s3.ListResponse
		validExt = []string{".avif"}
	)

	response, err = s.s3Client.List(
		bucket,
		prefix,
		listoptions.WithGetAll(),
		listoptions.WithFilter(func(obj types.Object) bool {
			ext := strings.ToLower(path.Ext(aws.ToString(obj.Key)))
			return slices.IsInSlice(ext, validExt)
		}),
	)

	if err != nil {
		return nil, fmt.Errorf("error listing objects under '%s': %w", prefix, err)
	}

	result := make(map[string]time.Time, len(response.Objects))

	for _, obj := range response.Objects {
		result[obj.Key] = obj.LastModified
	}

	return result, nil
}

func (s S3ObjectStore) Put(bucket, key string, body io.Reader) error {
	if _, err := s.s3Client.Put(bucket, key, body); err != nil {
		return fmt.Errorf("error uploading '%s' to S3: %w", key, err)
	}

	return nil
}
