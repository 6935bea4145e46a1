package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinedChecksum_ChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(a, []byte(`[]`), 0o644))

	first := CombinedChecksum(a, filepath.Join(dir, "missing.json"))
	assert.Equal(t, first, CombinedChecksum(a, filepath.Join(dir, "missing.json")))

	require.NoError(t, os.WriteFile(a, []byte(`[{}]`), 0o644))
	assert.NotEqual(t, first, CombinedChecksum(a, filepath.Join(dir, "missing.json")))
}

func TestHashKey_Separator(t *testing.T) {
	assert.NotEqual(t, HashKey("ab", "c"), HashKey("a", "bc"))
}

func TestRespondWithEmbeddingTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithEmbeddingTimeout(c, 5)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "embedding_timeout", body.ErrorCode)
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4242"
	assert.Equal(t, "10.0.0.5", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "not-an-ip")
	r.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", GetClientIP(r))
}
