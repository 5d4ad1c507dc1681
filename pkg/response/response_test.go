package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(debug bool) Response {
		SetDebug(debug)
		defer SetDebug(false)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		ServerError(c, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	t.Run("Hidden in production", func(t *testing.T) {
		body := run(false)
		assert.Equal(t, ErrServerInternal, body.Code)
		assert.Equal(t, "Internal server error", body.Message)
	})

	t.Run("Exposed in debug", func(t *testing.T) {
		body := run(true)
		assert.Equal(t, "pq: connection refused", body.Message)
	})
}
