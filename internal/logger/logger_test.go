package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCarriesServiceField(t *testing.T) {
	log := New()
	assert.Equal(t, "choicemetrics", log.Data["service"])

	entry := log.WithComponent("choicemodel.wtp")
	assert.Equal(t, "choicemetrics", entry.Data["service"])
	assert.Equal(t, "choicemodel.wtp", entry.Data["component"])
}

func TestWithRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	entry := New().WithRequest(r)
	assert.NotEmpty(t, entry.Data["req_id"])
	assert.Equal(t, "/healthz", entry.Data["path"])
	assert.Equal(t, http.MethodGet, entry.Data["method"])

	r.Header.Set("X-Request-ID", "abc-123")
	entry = New().WithRequest(r)
	assert.Equal(t, "abc-123", entry.Data["req_id"])
}
