//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package provisioner

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Bucket interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// CreateBucket creates the bucket in the given region. The bucket owned by
// the caller already is not an error.
func CreateBucket(ctx context.Context, api Bucket, region string, bucket string) error {
	req := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}

	// us-east-1 is the only region rejecting an explicit location constraint
	if region != "" && region != "us-east-1" {
		req.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	_, err := api.CreateBucket(ctx, req)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			slog.Info("bucket exists", "bucket", bucket)
			return nil
		}
		return fail(STEP_BUCKET, err)
	}

	slog.Info("bucket created", "bucket", bucket)

	return nil
}

// UploadArtifact uploads the file to the bucket. The object key defaults
// to the file name.
func UploadArtifact(ctx context.Context, api Uploader, file, bucket, key string) error {
	if key == "" {
		key = file
	}

	fd, err := os.Open(file)
	if err != nil {
		return fail(STEP_UPLOAD, err)
	}
	defer fd.Close()

	val, err := api.Upload(ctx,
		&s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   fd,
		},
	)
	if err != nil {
		return fail(STEP_UPLOAD, err)
	}

	slog.Info("artifact uploaded", "file", file, "bucket", bucket, "key", key, "location", val.Location)

	return nil
}
