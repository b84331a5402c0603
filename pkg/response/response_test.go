package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestEnvelope(t *testing.T) {
	for _, ca := range []struct {
		name   string
		write  func(c *gin.Context)
		status int
		want   Body
	}{
		{"ok", func(c *gin.Context) { OK(c, "x") }, http.StatusOK, Body{Success: true, Data: "x"}},
		{"accepted", func(c *gin.Context) { Accepted(c, "x") }, http.StatusAccepted, Body{Success: true, Data: "x"}},
		{"bad request", func(c *gin.Context) { BadRequest(c, "nope") }, http.StatusBadRequest,
			Body{Error: "nope", Code: "bad_request"}},
		{"not found", func(c *gin.Context) { NotFound(c, "gone") }, http.StatusNotFound,
			Body{Error: "gone", Code: "not_found"}},
		{"custom", func(c *gin.Context) { Fail(c, http.StatusUnprocessableEntity, "invalid_timeline", "overlap") },
			http.StatusUnprocessableEntity, Body{Error: "overlap", Code: "invalid_timeline"}},
	} {
		t.Run(ca.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			ca.write(c)
			require.Equal(t, ca.status, rec.Code)

			var got Body
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			require.Equal(t, ca.want, got)
		})
	}
}
