package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// activityRoutes mounts routes the way the marketing handler does
type activityRoutes struct{}

func (activityRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/marketing")
	group.GET("/activities", func(c *gin.Context) {
		c.String(http.StatusOK, "activities")
	})
	group.POST("/activities/join", func(c *gin.Context) {
		c.String(http.StatusCreated, "joined")
	})
}

type healthRoutes struct{}

func (healthRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", func(c *gin.Context) {
		c.String(http.StatusOK, "up")
	})
}

func TestNewRouter(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))
	r.Register(healthRoutes{}).Setup()

	req := httptest.NewRequest("GET", "/api/v2/status", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "up", w.Body.String())
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(activityRoutes{})
	r.Setup()

	t.Run("mounts GET route under version prefix", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/marketing/activities", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "activities", w.Body.String())
	})

	t.Run("mounts POST route under version prefix", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/marketing/activities/join", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "joined", w.Body.String())
	})

	t.Run("unknown path is not served", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/marketing/activities", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRouterMultipleRegistrars(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.Register(activityRoutes{}).Register(healthRoutes{}).Setup()

	req1 := httptest.NewRequest("GET", "/api/v1/marketing/activities", nil)
	w1 := httptest.NewRecorder()
	engine.ServeHTTP(w1, req1)
	assert.Equal(t, http.StatusOK, w1.Code)

	req2 := httptest.NewRequest("GET", "/api/v1/status", nil)
	w2 := httptest.NewRecorder()
	engine.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)
}
