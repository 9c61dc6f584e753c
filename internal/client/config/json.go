package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sealpost/internal/flagx"
	"github.com/dmitrijs2005/sealpost/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	KeyServers       []string       `json:"key_servers"`
	Threshold        int            `json:"threshold"`
	ProgramID        string         `json:"program_id"`
	PolicyObjectID   string         `json:"policy_object_id"`
	DatabaseDriver   string         `json:"database_driver"`
	DatabaseDSN      string         `json:"database_dsn"`
	BlobBackend      string         `json:"blob_backend"`
	WalrusPublisher  string         `json:"walrus_publisher"`
	WalrusAggregator string         `json:"walrus_aggregator"`
	WalrusEpochs     int            `json:"walrus_epochs"`
	S3Region         string         `json:"s3_region"`
	S3AccessKey      string         `json:"s3_access_key"`
	S3SecretKey      string         `json:"s3_secret_key"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3Bucket         string         `json:"s3_bucket"`
	KeystorePath     string         `json:"keystore_path"`
	DownloadDir      string         `json:"download_dir"`
	CredentialTTL    timex.Duration `json:"credential_ttl"`
	RequestTimeout   timex.Duration `json:"request_timeout"`
	Locale           string         `json:"locale"`
	LogLevel         string         `json:"log_level"`
}

func set[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

// parseJson overlays cfg with the JSON file named by -c or -config. Fields
// absent from the file keep their current values. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if len(jc.KeyServers) > 0 {
		cfg.KeyServers = jc.KeyServers
	}
	set(&cfg.Threshold, jc.Threshold)
	set(&cfg.ProgramID, jc.ProgramID)
	set(&cfg.PolicyObjectID, jc.PolicyObjectID)
	set(&cfg.DatabaseDriver, jc.DatabaseDriver)
	set(&cfg.DatabaseDSN, jc.DatabaseDSN)
	set(&cfg.BlobBackend, jc.BlobBackend)
	set(&cfg.WalrusPublisher, jc.WalrusPublisher)
	set(&cfg.WalrusAggregator, jc.WalrusAggregator)
	set(&cfg.WalrusEpochs, jc.WalrusEpochs)
	set(&cfg.S3Region, jc.S3Region)
	set(&cfg.S3AccessKey, jc.S3AccessKey)
	set(&cfg.S3SecretKey, jc.S3SecretKey)
	set(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	set(&cfg.S3Bucket, jc.S3Bucket)
	set(&cfg.KeystorePath, jc.KeystorePath)
	set(&cfg.DownloadDir, jc.DownloadDir)
	set(&cfg.CredentialTTL, jc.CredentialTTL.Duration)
	set(&cfg.RequestTimeout, jc.RequestTimeout.Duration)
	set(&cfg.Locale, jc.Locale)
	set(&cfg.LogLevel, jc.LogLevel)
}
