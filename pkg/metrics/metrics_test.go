package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestRecorderSeries(t *testing.T) {
	r := NewRecorder()
	r.ObserveRender("layout2", "settled", 120*time.Millisecond)
	r.ObserveExport("pdf", "blocked", time.Millisecond)
	r.TaintChanged(true)
	r.TaintChanged(false)

	body := scrape(t)
	assert.Contains(t, body, `biodata_render_passes_total{layout="layout2",outcome="settled"} 1`)
	assert.Contains(t, body, `biodata_export_total{format="pdf",outcome="blocked"} 1`)
	assert.Contains(t, body, `biodata_render_tainted_canvases 0`)
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Contains(t, scrape(t), `biodata_http_requests_total{method="GET",path="/ping",status="200"} 1`)
}
