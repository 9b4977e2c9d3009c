package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/posalpro_end/models"
	"github.com/BerniceZTT/posalpro_end/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("middleware-test-secret")
}

func bearer(t *testing.T, id, role string) string {
	t.Helper()
	token, err := utils.GenerateToken(utils.LoginUser{ID: id, Role: role, Username: "u-" + id}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		user, err := utils.GetUser(c)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "role": user.Role})
	})
	r.GET("/", handlers...)
	return r
}

func do(r http.Handler, authHeader string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware())

	t.Run("missing header", func(t *testing.T) {
		w, body := do(r, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "MISSING_TOKEN", body["code"])
	})

	t.Run("wrong scheme", func(t *testing.T) {
		w, _ := do(r, "Basic abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		w, body := do(r, "Bearer not.a.token")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "INVALID_TOKEN", body["code"])
	})

	t.Run("valid token", func(t *testing.T) {
		w, body := do(r, bearer(t, "u1", string(models.UserRoleSALES)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", body["id"])
		assert.Equal(t, "SALES", body["role"])
	})
}

func TestOptionalAuth(t *testing.T) {
	r := newRouter(OptionalAuth())

	w, body := do(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["anonymous"])

	w, body = do(r, bearer(t, "u2", string(models.UserRoleVIEWER)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u2", body["id"])

	w, _ = do(r, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := newRouter(AuthMiddleware(), RequireRole(models.UserRoleMANAGER))

	cases := []struct {
		role string
		want int
	}{
		{string(models.UserRoleVIEWER), http.StatusForbidden},
		{string(models.UserRoleSALES), http.StatusForbidden},
		{string(models.UserRoleMANAGER), http.StatusOK},
		{string(models.UserRoleSUPER_ADMIN), http.StatusOK},
		{"GUEST", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			w, _ := do(r, bearer(t, "u3", tc.role))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, utils.ResponseMeta(c))
	})

	t.Run("generated", func(t *testing.T) {
		w, body := do(r, "")
		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, body["requestId"])
		assert.Contains(t, body, "responseTimeMs")
	})

	t.Run("propagated", func(t *testing.T) {
		want := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, want)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Header().Get(RequestIDHeader))
	})

	t.Run("invalid header replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "<script>")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
	})
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w, body := do(r, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, body["success"])
}
