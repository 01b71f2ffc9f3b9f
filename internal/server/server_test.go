package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chimu.app/backend/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                 "test",
		Port:                   "0",
		AllowedOrigins:         []string{"http://localhost:3000"},
		JWTSecret:              "test-secret",
		JWTTTL:                 time.Hour,
		FrontendURL:            "http://localhost:3000",
		RateLimitJoin:          time.Second,
		SurveyReminderSchedule: "0 8 * * *",
		SurveyReleaseSchedule:  "*/10 * * * *",
	}
}

func TestNewServerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv, err := NewServer(testConfig(), Deps{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"survey_reminders", "survey_releases", "icebreaker_catalog_sync"}, srv.scheduler.Jobs())

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", http.StatusOK},
		{"dashboard needs a token", http.MethodGet, "/api/dashboard/student", http.StatusUnauthorized},
		{"class join needs a token", http.MethodPost, "/api/classes/join", http.StatusUnauthorized},
		{"agreement needs a token", http.MethodGet, "/api/teams/abc/agreement", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestNewServerRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.SurveyReminderSchedule = "every morning"

	_, err := NewServer(cfg, Deps{})
	assert.Error(t, err)
}
