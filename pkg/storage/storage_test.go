package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFromURI(t *testing.T) {
	cases := []struct {
		uri string
		key string
	}{
		{"minio://documents/uploads/q2.pdf", "uploads/q2.pdf"},
		{"s3://documents/audio/standup.mp3", "audio/standup.mp3"},
		{"s3://bucket/a", "a"},
	}
	for _, tc := range cases {
		key, err := KeyFromURI(tc.uri)
		require.NoError(t, err, tc.uri)
		assert.Equal(t, tc.key, key, tc.uri)
	}
}

func TestKeyFromURIInvalid(t *testing.T) {
	for _, uri := range []string{
		"",
		"not a uri",
		"s3://bucket",
		"s3://bucket/",
		"/just/a/path",
	} {
		_, err := KeyFromURI(uri)
		assert.Error(t, err, "uri %q", uri)
	}
}

func TestNewUnsupportedBackend(t *testing.T) {
	_, err := New(Backend("gcs"), Config{}, nil)
	assert.Error(t, err)
}
