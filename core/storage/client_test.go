package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		endpoint string
		secure   bool
	}{
		{"Bare Host", Config{Endpoint: "localhost:9000"}, "localhost:9000", false},
		{"Bare Host With SSL", Config{Endpoint: "minio.internal", UseSSL: true}, "minio.internal", true},
		{"HTTP Scheme", Config{Endpoint: "http://localhost:9000/"}, "localhost:9000", false},
		{"HTTPS Scheme Implies TLS", Config{Endpoint: "https://s3.amazonaws.com"}, "s3.amazonaws.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint, secure := splitEndpoint(tt.cfg)
			assert.Equal(t, tt.endpoint, endpoint)
			assert.Equal(t, tt.secure, secure)
		})
	}
}

func TestNewClient(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		client, err := NewClient(Config{
			Endpoint:  "https://s3.amazonaws.com",
			AccessKey: "testkey",
			SecretKey: "testsecret",
			Region:    "us-east-1",
		})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("Empty Endpoint", func(t *testing.T) {
		client, err := NewClient(Config{Endpoint: "http://"})
		assert.Error(t, err)
		assert.Nil(t, client)
	})
}
