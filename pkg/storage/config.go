package storage

import "fmt"

const (
	// DefaultMaxRetries is the number of retries for a write operation
	DefaultMaxRetries = 4
)

// Config holds all configuration for the Storage.
//
// Config is geared towards "bucket" style storage, where you have a
// specific root (the Bucket).
type Config struct {
	Bucket     string
	Root       string
	MaxRetries int

	// S3 only.
	Region    string
	AccessKey string
	Secret    string
}

// NewConfig returns a new Config with AWS style options.
func NewConfig(bucket, root string) Config {
	return Config{
		Bucket:     bucket,
		Root:       root,
		MaxRetries: DefaultMaxRetries,
	}
}

// String omits credentials.
func (c Config) String() string {
	root := ""
	if len(c.Root) > 0 {
		root = fmt.Sprintf(" Root:%s", c.Root)
	}

	region := ""
	if len(c.Region) > 0 {
		region = fmt.Sprintf(" Region:%s", c.Region)
	}

	return fmt.Sprintf("{Bucket:%v%s%s MaxRetries:%v}", c.Bucket, root, region, c.MaxRetries)
}
