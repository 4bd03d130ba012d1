package httpserver_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fakturo/internal/platform/config"
	"fakturo/internal/platform/httpserver"
)

func TestNewAppliesConfig(t *testing.T) {
	cfg := config.HTTPConfig{
		Addr:         ":9090",
		ReadTimeout:  7 * time.Second,
		WriteTimeout: 13 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	srv := httpserver.New(cfg, http.NewServeMux())

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 7*time.Second, srv.ReadTimeout)
	assert.Equal(t, 13*time.Second, srv.WriteTimeout)
	assert.Equal(t, 90*time.Second, srv.IdleTimeout)
	assert.NotZero(t, srv.ReadHeaderTimeout, "header reads must not hang forever")
}
