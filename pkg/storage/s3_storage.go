package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/defaults"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// S3Storage implements the Storage interface for interacting with AWS S3.
type S3Storage struct {
	Config  Config
	Session *session.Session
}

// NewS3Storage creates a new S3Storage with a new aws.Session.
func NewS3Storage(config Config) S3Storage {
	return S3Storage{
		Config:  config,
		Session: newAWSSession(config),
	}
}

// NewS3StorageWithSession returns a new S3Storage with a given AWS Session.
func NewS3StorageWithSession(config Config, session *session.Session) S3Storage {
	return S3Storage{
		Config:  config,
		Session: session,
	}
}

// Write writes the data to the key in the S3 Bucket, with Options applied.
func (s S3Storage) Write(ctx context.Context, key string, body []byte,
	options *Options) error {

	poi := s3.PutObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   bytes.NewReader(body),
	}

	if options != nil && options.TTL > 0 {
		expiry := time.Now().Add(time.Duration(options.TTL) * time.Second)
		poi.Expires = &expiry
	}

	if _, err := s3.New(s.Session).PutObjectWithContext(ctx, &poi); err != nil {
		return errors.Wrapf(err, "write %s", key)
	}

	return nil
}

// Read will read the data from the S3 Bucket.
func (s S3Storage) Read(ctx context.Context, key string) ([]byte, error) {
	document, err := s3.New(s.Session).GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "read %s", key)
	}
	defer document.Body.Close()

	b, err := io.ReadAll(document.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read body %s", key)
	}

	return b, nil
}

// Remove removes the object stored at key, in the S3 Bucket.
func (s S3Storage) Remove(ctx context.Context, key string) error {
	_, err := s3.New(s.Session).DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "remove %s", key)
	}

	return nil
}

// Search downloads every object under query["path"].
func (s S3Storage) Search(ctx context.Context, query map[string]string) ([][]byte, error) {
	keys, err := s.findKeys(ctx, query["path"])
	if err != nil {
		return nil, err
	}

	// The batch downloader writes each object to its own buffer.
	bufs := make([]*aws.WriteAtBuffer, len(keys))
	objects := make([]s3manager.BatchDownloadObject, len(keys))
	for i, k := range keys {
		bufs[i] = aws.NewWriteAtBuffer(nil)
		objects[i] = s3manager.BatchDownloadObject{
			Object: &s3.GetObjectInput{
				Bucket: aws.String(s.Config.Bucket),
				Key:    aws.String(k),
			},
			Writer: bufs[i],
		}
	}

	iter := &s3manager.DownloadObjectsIterator{Objects: objects}
	if err := s3manager.NewDownloader(s.Session).DownloadWithIterator(ctx, iter); err != nil {
		return nil, errors.Wrap(err, "download")
	}

	result := make([][]byte, len(bufs))
	for i, b := range bufs {
		result[i] = b.Bytes()
	}

	return result, nil
}

// List returns the keys under path, relative to the configured root.
func (s S3Storage) List(ctx context.Context, path string) ([]string, error) {
	keys, err := s.findKeys(ctx, path)
	if err != nil {
		return nil, err
	}

	prefix := s.fullKey("")
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, prefix)
	}

	return keys, nil
}

func (s S3Storage) findKeys(ctx context.Context, path string) ([]string, error) {
	prefix := s.fullKey(path)
	if len(path) > 0 && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.Config.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}

	keys := []string{}
	err := s3.New(s.Session).ListObjectsV2PagesWithContext(ctx, input,
		func(out *s3.ListObjectsV2Output, last bool) bool {
			for _, o := range out.Contents {
				keys = append(keys, aws.StringValue(o.Key))
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", path)
	}

	return keys, nil
}

func (s S3Storage) fullKey(key string) string {
	if len(s.Config.Root) == 0 {
		return key
	}

	return strings.TrimSuffix(s.Config.Root, "/") + "/" + key
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}

	return false
}

// newAWSSession creates a new AWS Session from the credentials in the
// Config.
func newAWSSession(config Config) *session.Session {
	awsDefaults := defaults.Get()
	defaultCredProviders := defaults.CredProviders(awsDefaults.Config, awsDefaults.Handlers)

	// Static credentials take precedence over the default chain when set.
	staticCreds := &credentials.StaticProvider{Value: credentials.Value{
		AccessKeyID:     config.AccessKey,
		SecretAccessKey: config.Secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}}

	providers := append([]credentials.Provider{staticCreds}, defaultCredProviders...)
	creds := credentials.NewChainCredentials(providers)

	awsConfig := aws.NewConfig().
		WithCredentials(creds).
		WithMaxRetries(config.MaxRetries)

	if len(config.Region) > 0 {
		awsConfig = awsConfig.WithRegion(config.Region)
	}

	return session.Must(session.NewSession(awsConfig))
}
