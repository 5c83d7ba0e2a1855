package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims jwtv5.MapClaims) string {
	t.Helper()
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authApp() *gin.Engine {
	gin.SetMode(gin.TestMode)
	app := gin.New()
	app.Use(AuthMiddleware(testSecret))
	app.GET("/probe", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return app
}

func doProbe(app *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID, orgID := uuid.New(), uuid.New()

	var gotUser, gotOrg uuid.UUID
	var gotRole string
	var gotAdmin bool

	app := gin.New()
	app.Use(AuthMiddleware(testSecret))
	app.GET("/probe", func(c *gin.Context) {
		gotUser, _ = UserID(c)
		gotOrg, _ = OrgID(c)
		gotRole = Role(c)
		gotAdmin = IsAdmin(c)
		c.Status(http.StatusNoContent)
	})

	token := signToken(t, testSecret, jwtv5.MapClaims{
		"user_id":      userID.String(),
		"org_id":       orgID.String(),
		"role":         RoleAdmin,
		"display_name": "Sam",
	})
	w := doProbe(app, "Bearer "+token)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, userID, gotUser)
	assert.Equal(t, orgID, gotOrg)
	assert.Equal(t, RoleAdmin, gotRole)
	assert.True(t, gotAdmin)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	app := authApp()
	userID, orgID := uuid.New(), uuid.New()

	valid := jwtv5.MapClaims{
		"user_id": userID.String(),
		"org_id":  orgID.String(),
		"role":    RoleMember,
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", valid)},
		{"missing org claim", "Bearer " + signToken(t, testSecret, jwtv5.MapClaims{
			"user_id": userID.String(),
			"role":    RoleMember,
		})},
		{"malformed user id", "Bearer " + signToken(t, testSecret, jwtv5.MapClaims{
			"user_id": "not-a-uuid",
			"org_id":  orgID.String(),
			"role":    RoleMember,
		})},
		{"unknown role", "Bearer " + signToken(t, testSecret, jwtv5.MapClaims{
			"user_id": userID.String(),
			"org_id":  orgID.String(),
			"role":    "superuser",
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doProbe(app, tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestIsAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for role, want := range map[string]bool{
		RoleMember: false,
		RoleAdmin:  true,
		RoleOwner:  true,
	} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("authRole", role)
		assert.Equal(t, want, IsAdmin(c), "role %s", role)
	}
}
