package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Im-Vestor/im-vestor-full-sub002/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Call runs handler against a JSON request the way the router would after
// the auth middleware put user into the context. user may be nil.
func Call(t *testing.T, handler gin.HandlerFunc, method, path string, body interface{}, user *models.User, params ...gin.Param) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	if user != nil {
		c.Set("user", *user)
	}

	handler(c)
	return w
}

func Param(key, value string) gin.Param {
	return gin.Param{Key: key, Value: value}
}

// Decode unmarshals the recorded JSON body into out.
func Decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}
