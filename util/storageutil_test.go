package util

import (
	"context"
	"testing"
)

func TestParseBucketAndObjectFromUri(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{uri: "gs://runs/sim/time/run_1.csv", bucket: "runs", object: "sim/time/run_1.csv"},
		{uri: "gs://runs/", bucket: "runs", object: ""},
		{uri: "gs://runs", wantErr: true},
		{uri: "gs:///object", wantErr: true},
		{uri: "runs/object", wantErr: true},
	}
	for _, tc := range tests {
		bucket, object, err := ParseBucketAndObjectFromUri(tc.uri)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseBucketAndObjectFromUri(%q) err = %v, wantErr %v", tc.uri, err, tc.wantErr)
			continue
		}
		if bucket != tc.bucket || object != tc.object {
			t.Errorf("ParseBucketAndObjectFromUri(%q) = %q, %q; want %q, %q", tc.uri, bucket, object, tc.bucket, tc.object)
		}
	}
}

func TestUploadObjectRejectsDirectories(t *testing.T) {
	for _, uri := range []string{"gs://runs/", "gs://runs/figures/", "figures/out.png"} {
		if err := UploadObject(context.Background(), nil, uri, "image/png", nil); err == nil {
			t.Errorf("UploadObject(%q) succeeded", uri)
		}
	}
}

func TestNewStorageClientUnknownProtocol(t *testing.T) {
	if _, err := NewStorageClient(context.Background(), StorageOptions{Protocol: "ftp"}); err == nil {
		t.Error("NewStorageClient accepted protocol ftp")
	}
}
