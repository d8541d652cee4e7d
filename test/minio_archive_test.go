//go:build integration
// +build integration

// Package test holds integration tests that need a real backing
// service rather than a fake, gated behind the "integration" build tag
// the teacher's own hardware_acceleration_test.go uses for the same
// reason. The teacher's garage.go managed a local Garage binary/process
// directly; testcontainers-go's minio module (already in go.mod,
// previously unwired) gives the same "real S3-compatible backend"
// guarantee without depending on a binary being present on the host.
package test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awssdks3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/kenneth/pinenut/internal/archive"
	"github.com/kenneth/pinenut/internal/config"
	"github.com/kenneth/pinenut/internal/logfile"
	awss3 "github.com/kenneth/pinenut/internal/s3"
)

const (
	testAccessKey = "pinenut-test"
	testSecretKey = "pinenut-test-secret"
	testBucket    = "pinenut-archive"
)

// TestArchiverUploadAllAgainstRealMinIO writes a handful of rotated
// logfiles directly to disk (bypassing the logger, since only the
// archival path is under test here), then confirms Archiver.UploadAll
// lands every one of them in a real MinIO bucket and DeleteAfterUpload
// removes the local copies.
func TestArchiverUploadAllAgainstRealMinIO(t *testing.T) {
	ctx := context.Background()

	ctr, err := minio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(testAccessKey),
		minio.WithPassword(testSecretKey),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ctr.Terminate(ctx)) })

	endpoint, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := config.ArchiveConfig{
		Enabled:           true,
		Provider:          "minio",
		Bucket:            testBucket,
		Prefix:            "archived",
		Region:            "us-east-1",
		Endpoint:          "http://" + endpoint,
		AccessKey:         testAccessKey,
		SecretKey:         testSecretKey,
		DeleteAfterUpload: true,
	}

	require.NoError(t, createBucket(ctx, cfg, testBucket))

	client, err := awss3.NewClient(&cfg)
	require.NoError(t, err)

	a, err := archive.New(cfg)
	require.NoError(t, err)
	require.NotNil(t, a)

	dir := t.TempDir()
	base := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	var written []*logfile.Logfile
	for i := range 3 {
		f := logfile.New(dir, "checkout", base.Add(time.Duration(i)*time.Minute), logfile.ModeWrite)
		_, err := f.Write([]byte("rotated payload"))
		require.NoError(t, err)
		require.NoError(t, f.Flush())
		require.NoError(t, f.Close())
		written = append(written, f)
	}

	require.NoError(t, a.UploadAll(ctx, dir, "checkout", nil))

	for _, f := range written {
		_, _, err := client.GetObject(ctx, testBucket, "archived/checkout/"+f.Name())
		require.NoError(t, err, "object for %s should exist in MinIO", f.Name())
		_, err = f.Open()
		require.Error(t, err, "local copy should have been deleted after upload")
	}
}

// createBucket provisions bucket directly through the AWS SDK, since
// awss3.Client (internal/s3.Client) deliberately has no bucket-management
// method of its own: Pinenut only ever archives into a bucket its
// deployment has already provisioned. Tests stand in for that
// provisioning step themselves.
func createBucket(ctx context.Context, cfg config.ArchiveConfig, bucket string) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return err
	}
	client := awssdks3.NewFromConfig(awsCfg, func(o *awssdks3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})
	_, err = client.CreateBucket(ctx, &awssdks3.CreateBucketInput{Bucket: aws.String(bucket)})
	return err
}
