package config

import (
	"encoding/json"
	"os"

	"github.com/loadnetwork/load-s3-agent/internal/flagx"
	"github.com/loadnetwork/load-s3-agent/internal/timex"
)

// JsonConfig is the JSON-file shape of Config. It is an intermediate DTO:
// duration fields use timex.Duration so both "1h" strings and integer
// nanoseconds parse, then values are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr             string         `json:"endpoint_addr"`
	DatabaseDSN              string         `json:"database_dsn"`
	AuthSecret               string         `json:"auth_secret"`
	UploaderJWKPath          string         `json:"uploader_jwk_path"`
	S3AccessKeyID            string         `json:"s3_access_key_id"`
	S3SecretAccessKey        string         `json:"s3_secret_access_key"`
	S3Region                 string         `json:"s3_region"`
	S3BaseEndpoint           string         `json:"s3_base_endpoint"`
	S3PublicBucket           string         `json:"s3_public_bucket"`
	S3PrivateBucket          string         `json:"s3_private_bucket"`
	S3PrivateBucketAllowList []string       `json:"s3_private_bucket_allow_list"`
	BundlerURL               string         `json:"bundler_url"`
	FreeUploadLimit          int64          `json:"free_upload_limit"`
	MaxObjectSize            int64          `json:"max_object_size"`
	PresignExpiry            timex.Duration `json:"presign_expiry"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path comes from the -c or -config flags; when neither
// is set, no JSON file is loaded. Unset (zero) JSON fields leave the
// corresponding Config values untouched.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.AuthSecret != "" {
		config.AuthSecret = c.AuthSecret
	}
	if c.UploaderJWKPath != "" {
		config.UploaderJWKPath = c.UploaderJWKPath
	}
	if c.S3AccessKeyID != "" {
		config.S3AccessKeyID = c.S3AccessKeyID
	}
	if c.S3SecretAccessKey != "" {
		config.S3SecretAccessKey = c.S3SecretAccessKey
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.S3PublicBucket != "" {
		config.S3PublicBucket = c.S3PublicBucket
	}
	if c.S3PrivateBucket != "" {
		config.S3PrivateBucket = c.S3PrivateBucket
	}
	if len(c.S3PrivateBucketAllowList) > 0 {
		config.S3PrivateBucketAllowList = c.S3PrivateBucketAllowList
	}
	if c.BundlerURL != "" {
		config.BundlerURL = c.BundlerURL
	}
	if c.FreeUploadLimit > 0 {
		config.FreeUploadLimit = c.FreeUploadLimit
	}
	if c.MaxObjectSize > 0 {
		config.MaxObjectSize = c.MaxObjectSize
	}
	if c.PresignExpiry.Duration > 0 {
		config.PresignExpiry = c.PresignExpiry.Duration
	}
}
