package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/loadnetwork/load-s3-agent/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   PostgreSQL DSN
//	-s string   bearer auth HMAC secret (empty disables auth)
//	-j string   path to the uploader Arweave JWK file
//	-k string   S3 access key id
//	-p string   S3 secret access key
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-b string   public bucket name
//	-v string   private bucket name
//	-w string   comma-separated private bucket allow-list
//	-u string   bundler base URL
//	-f int      free-submission size ceiling, bytes
//	-m int      upload body cap, bytes
//	-x int      presigned URL expiry, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-j", "-k", "-p", "-g", "-e", "-b", "-v", "-w", "-u", "-f", "-m", "-x",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run the agent")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AuthSecret, "s", config.AuthSecret, "bearer auth secret")
	fs.StringVar(&config.UploaderJWKPath, "j", config.UploaderJWKPath, "uploader JWK path")
	fs.StringVar(&config.S3AccessKeyID, "k", config.S3AccessKeyID, "S3 access key id")
	fs.StringVar(&config.S3SecretAccessKey, "p", config.S3SecretAccessKey, "S3 secret access key")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicBucket, "b", config.S3PublicBucket, "public bucket")
	fs.StringVar(&config.S3PrivateBucket, "v", config.S3PrivateBucket, "private bucket")
	allowList := fs.String("w", strings.Join(config.S3PrivateBucketAllowList, ","), "private bucket allow-list (comma-separated)")
	fs.StringVar(&config.BundlerURL, "u", config.BundlerURL, "bundler base URL")
	fs.Int64Var(&config.FreeUploadLimit, "f", config.FreeUploadLimit, "free submission ceiling (bytes)")
	fs.Int64Var(&config.MaxObjectSize, "m", config.MaxObjectSize, "upload body cap (bytes)")
	presignExpiry := fs.Int("x", int(config.PresignExpiry.Seconds()), "presigned URL expiry (seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *allowList != "" {
		config.S3PrivateBucketAllowList = strings.Split(*allowList, ",")
	}
	config.PresignExpiry = time.Duration(*presignExpiry) * time.Second
}
