// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gcs implements the fs.FS interface using Google Cloud Storage.
package gcs

import (
	"context"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/pathtracer/sppreport/storage/fs"
)

// FS is a Google Cloud Storage bucket.
type FS struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewFS constructs an FS that writes to the provided bucket.
// If credentialsFile is empty, Application Default Credentials are
// used.
func NewFS(ctx context.Context, bucketName, credentialsFile string) (*FS, error) {
	opts, err := clientOptions(ctx, credentialsFile)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &FS{client: client, bucket: client.Bucket(bucketName)}, nil
}

func clientOptions(ctx context.Context, credentialsFile string) ([]option.ClientOption, error) {
	if credentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credentialsFile)}, nil
	}
	ts, err := google.DefaultTokenSource(ctx, storage.ScopeReadWrite)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithTokenSource(ts)}, nil
}

// NewWriter returns a Writer for name. The object is created when the
// Writer is closed.
func (f *FS) NewWriter(ctx context.Context, name string, metadata map[string]string) (fs.Writer, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := f.bucket.Object(name).NewWriter(ctx)
	w.ContentType = metadata["content-type"]
	w.Metadata = make(map[string]string)
	for k, v := range metadata {
		if k != "content-type" {
			w.Metadata[k] = v
		}
	}
	return &wrapper{w, cancel}, nil
}

// Close releases the storage client.
func (f *FS) Close() error {
	return f.client.Close()
}

type wrapper struct {
	*storage.Writer
	cancel context.CancelFunc
}

func (w *wrapper) Close() error {
	defer w.cancel()
	return w.Writer.Close()
}

// CloseWithError aborts the upload; cancelling the writer's context
// discards the object.
func (w *wrapper) CloseWithError(error) error {
	w.cancel()
	w.Writer.Close()
	return nil
}
