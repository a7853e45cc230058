package testkit

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/chiro/erp/internal/platform/httpapi/dto"
)

// NewTestContext builds a gin context for calling a handler directly.
// body is JSON-encoded unless it is nil or already a []byte.
func NewTestContext(t testing.TB, method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, reader)
	if reader != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, w
}

// DoJSON sends a request through handler and returns the recorder.
func DoJSON(t testing.TB, handler http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// DecodeResponse decodes the standard envelope, unmarshalling Data into
// data when data is non-nil.
func DecodeResponse(t testing.TB, w *httptest.ResponseRecorder, data any) dto.Response {
	t.Helper()

	var raw struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.Response
}
