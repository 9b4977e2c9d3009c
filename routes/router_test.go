package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/BerniceZTT/posalpro_end/config"
	"github.com/BerniceZTT/posalpro_end/controllers"
	"github.com/BerniceZTT/posalpro_end/models"
	"github.com/BerniceZTT/posalpro_end/repository"
	"github.com/BerniceZTT/posalpro_end/service"
	"github.com/BerniceZTT/posalpro_end/utils"
)

type stubBuilder struct{}

func (stubBuilder) Build(context.Context, models.DashboardScope) (models.DerivedDashboard, error) {
	return models.DerivedDashboard{}, nil
}

type stubStore struct{}

func (stubStore) Find(context.Context, string, repository.EntityQuery) ([]map[string]interface{}, error) {
	return nil, nil
}

func (stubStore) FindByID(context.Context, string, string, repository.EntityQuery) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("routes-test-secret")

	projector := service.NewSelectiveHydrationProjector(config.MustDefaultEntityFieldTable())
	r := gin.New()
	RegisterRoutes(r, Handlers{
		Health:    controllers.NewHealthController(projector, nil, "test", "test"),
		Dashboard: controllers.NewDashboardController(stubBuilder{}, nil),
		Entities:  controllers.NewEntityController(projector, stubStore{}),
	})
	return r
}

func TestRoutesRequireAuth(t *testing.T) {
	r := newTestRouter()
	token, err := utils.GenerateToken(utils.LoginUser{ID: "u1", Role: "ADMIN", Username: "admin"}, time.Hour)
	assert.NoError(t, err)

	cases := []struct {
		method, path string
		auth         bool
		want         int
	}{
		{http.MethodGet, "/api/health", false, http.StatusOK},
		{http.MethodGet, "/api/dashboard/enhanced", false, http.StatusUnauthorized},
		{http.MethodGet, "/api/dashboard/enhanced", true, http.StatusOK},
		{http.MethodGet, "/api/proposals", false, http.StatusUnauthorized},
		{http.MethodGet, "/api/customers", true, http.StatusOK},
		{http.MethodGet, "/api/products/abc", true, http.StatusOK},
		{http.MethodGet, "/api/users", true, http.StatusOK},
		{http.MethodGet, "/api/inventory", true, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.auth {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestUsersRouteRequiresManager(t *testing.T) {
	r := newTestRouter()

	cases := []struct {
		role string
		want int
	}{
		{"SALES", http.StatusForbidden},
		{"VIEWER", http.StatusForbidden},
		{"MANAGER", http.StatusOK},
		{"SUPER_ADMIN", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			token, err := utils.GenerateToken(utils.LoginUser{ID: "u-" + tc.role, Role: tc.role, Username: tc.role}, time.Hour)
			assert.NoError(t, err)

			for _, path := range []string{"/api/users", "/api/users/abc"} {
				req := httptest.NewRequest(http.MethodGet, path, nil)
				req.Header.Set("Authorization", "Bearer "+token)
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				assert.Equal(t, tc.want, w.Code, path)
			}
		})
	}

	// 其他实体不受角色限制
	token, err := utils.GenerateToken(utils.LoginUser{ID: "u-sales", Role: "SALES", Username: "sales"}, time.Hour)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/proposals", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
