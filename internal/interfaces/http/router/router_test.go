package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(c *gin.Context) { c.String(http.StatusOK, c.FullPath()) }

func serve(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("print", "/print")
	g.GET("/document-types", ok)
	NewRouter(engine).Register(g).Setup()

	w := serve(engine, http.MethodGet, BasePath+"/print/document-types")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/print/document-types", w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/print/document-types").Code)
}

func TestDomainGroup_MethodsAndSubgroups(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("print", "/print")
	dialogs := g.Group("print-dialogs", "/dialogs")
	dialogs.POST("", ok)
	dialogs.GET("/:id", ok)
	dialogs.PUT("/:id/records", ok)
	dialogs.DELETE("/:id", ok)
	NewRouter(engine).Register(g).Setup()

	tests := []struct {
		method, target, route string
	}{
		{http.MethodPost, "/api/v1/print/dialogs", "/api/v1/print/dialogs"},
		{http.MethodGet, "/api/v1/print/dialogs/abc", "/api/v1/print/dialogs/:id"},
		{http.MethodPut, "/api/v1/print/dialogs/abc/records", "/api/v1/print/dialogs/:id/records"},
		{http.MethodDelete, "/api/v1/print/dialogs/abc", "/api/v1/print/dialogs/:id"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := serve(engine, tt.method, tt.target)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.route, w.Body.String())
		})
	}
}

func TestDomainGroup_MiddlewareReachesSubgroups(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("print", "/print")
	g.Use(func(c *gin.Context) {
		c.Header("X-Group", "print")
		c.Next()
	})
	g.Group("print-dialogs", "/dialogs").GET("/:id", ok)
	NewRouter(engine).Register(g).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/print/dialogs/1")
	assert.Equal(t, "print", w.Header().Get("X-Group"))
}

func TestDomainGroup_Routes(t *testing.T) {
	g := NewDomainGroup("print", "/print")
	g.GET("/document-types", ok)
	g.Group("print-dialogs", "/dialogs").POST("", ok).GET("/:id/preview", ok)

	routes := g.Routes(BasePath)

	assert.Equal(t, []RouteInfo{
		{Group: "print", Method: http.MethodGet, Path: "/api/v1/print/document-types"},
		{Group: "print-dialogs", Method: http.MethodPost, Path: "/api/v1/print/dialogs"},
		{Group: "print-dialogs", Method: http.MethodGet, Path: "/api/v1/print/dialogs/:id/preview"},
	}, routes)
}
