package filestore

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the settings for the report archive's object store.
type Config struct {
	Provider Provider

	// Endpoint is host:port, e.g. "localhost:9000".
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region is only needed for region-aware S3 endpoints.
	Region string

	// DefaultBucket is where reports go when the caller passes no bucket.
	DefaultBucket string
}

// DefaultConfig returns a plain-HTTP MinIO config.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}
