package server_test

import (
	"testing"

	"datakit/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Address(t *testing.T) {
	tests := []struct {
		name string
		cfg  server.Config
		want string
	}{
		{"Port Only", server.Config{Port: "8080"}, ":8080"},
		{"Host And Port", server.Config{Host: "127.0.0.1", Port: "9000"}, "127.0.0.1:9000"},
		{"Leading Colon", server.Config{Port: ":7000"}, ":7000"},
		{"Empty", server.Config{}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Address())
		})
	}
}

func TestConfig_AuthEnabled(t *testing.T) {
	assert.False(t, server.Config{}.AuthEnabled())
	assert.True(t, server.Config{ApiKey: "secret"}.AuthEnabled())
}
