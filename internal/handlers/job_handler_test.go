package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/parcelworks/siteline/internal/logger"
	"github.com/parcelworks/siteline/internal/models"
	"github.com/parcelworks/siteline/internal/providers"
	"github.com/parcelworks/siteline/internal/repository"
	"github.com/parcelworks/siteline/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testResolver returns one fixed candidate for any query.
type testResolver struct {
	mu sync.Mutex
}

func (r *testResolver) Resolve(ctx context.Context, query string) ([]providers.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []providers.Candidate{
		{Address: "12 Harbour View Road, Northcote", Latitude: -36.8019, Longitude: 174.7507, Confidence: 0.95},
	}, nil
}

func (r *testResolver) ResolveCoordinates(ctx context.Context, lat, lng float64) ([]providers.Candidate, error) {
	return r.Resolve(ctx, "")
}

func (r *testResolver) Autocomplete(ctx context.Context, partial string) ([]string, error) {
	return []string{"12 Harbour View Road, Northcote"}, nil
}

func setupJobRouter(t *testing.T) (*gin.Engine, *services.JobOrchestrator) {
	t.Helper()
	log := logger.New("test")

	fetchers := providers.FetcherSet{}
	for _, section := range models.Sections {
		if section == models.SectionTitle {
			continue
		}
		payload := json.RawMessage(fmt.Sprintf(`{"section":%q}`, section))
		fetchers[section] = func(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
			return payload, nil
		}
	}

	locations := repository.NewMemoryLocationRepository()
	cache := services.NewLocationCache(locations, &testResolver{}, fetchers, log)
	orchestrator := services.NewJobOrchestrator(repository.NewMemoryJobRepository().WithLocations(locations), cache, log)
	handler := NewJobHandler(orchestrator)

	router := gin.New()
	jobs := router.Group("/api/v1/jobs")
	{
		jobs.POST("", handler.Create)
		jobs.GET("", handler.List)
		jobs.GET("/:id", handler.Get)
		jobs.PATCH("/:id", handler.Update)
		jobs.PUT("/:id/status", handler.UpdateStatus)
		jobs.POST("/:id/cancel", handler.Cancel)
		jobs.POST("/:id/collect", handler.Collect)
		jobs.POST("/:id/refresh", handler.Refresh)
	}
	return router, orchestrator
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJob(t *testing.T, w *httptest.ResponseRecorder) *models.Job {
	t.Helper()
	var response struct {
		Job *models.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotNil(t, response.Job)
	return response.Job
}

func TestCreateJobEndpoint(t *testing.T) {
	router, _ := setupJobRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/jobs", gin.H{
		"address":  "12 Harbour View Road, Northcote",
		"customer": gin.H{"name": "Meridian Developments"},
		"owner":    "sarah",
	})

	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	job := decodeJob(t, w)
	assert.Regexp(t, `^JOB-\d{4}-\d{5}$`, job.Reference)
	assert.Equal(t, models.JobCreated, job.Status)
}

func TestCreateJobEndpointLocatorErrors(t *testing.T) {
	router, _ := setupJobRouter(t)

	t.Run("no locator", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/jobs", gin.H{
			"customer": gin.H{"name": "Meridian Developments"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("two locators", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/jobs", gin.H{
			"address":        "12 Harbour View Road",
			"titleReference": "NA123/456",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("latitude out of range", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/jobs", gin.H{
			"latitude":  95.0,
			"longitude": 174.75,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetJobEndpoint(t *testing.T) {
	router, _ := setupJobRouter(t)

	created := decodeJob(t, doJSON(t, router, http.MethodPost, "/api/v1/jobs", gin.H{
		"address":  "12 Harbour View Road, Northcote",
		"customer": gin.H{"name": "Meridian Developments"},
	}))

	t.Run("by id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/v1/jobs/"+created.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, created.ID, decodeJob(t, w).ID)
	})

	t.Run("by reference", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/v1/jobs/"+created.Reference, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, created.ID, decodeJob(t, w).ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/v1/jobs/00000000-0000-0000-0000-000000000001", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCollectEndpoint(t *testing.T) {
	router, _ := setupJobRouter(t)

	created := decodeJob(t, doJSON(t, router, http.MethodPost, "/api/v1/jobs", gin.H{
		"address":  "12 Harbour View Road, Northcote",
		"customer": gin.H{"name": "Meridian Developments"},
	}))

	w := doJSON(t, router, http.MethodPost, "/api/v1/jobs/"+created.ID.String()+"/collect", nil)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	job := decodeJob(t, w)
	assert.Equal(t, models.JobComplete, job.Status)
	assert.Equal(t, 86, job.Completeness)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	router, _ := setupJobRouter(t)

	created := decodeJob(t, doJSON(t, router, http.MethodPost, "/api/v1/jobs", gin.H{
		"address":  "12 Harbour View Road, Northcote",
		"customer": gin.H{"name": "Meridian Developments"},
	}))
	path := "/api/v1/jobs/" + created.ID.String()

	w := doJSON(t, router, http.MethodPut, path+"/status", gin.H{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.JobInProgress, decodeJob(t, w).Status)

	// Cancel, then any further transition is rejected.
	w = doJSON(t, router, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPut, path+"/status", gin.H{"status": "in_progress"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateJobEndpoint(t *testing.T) {
	router, _ := setupJobRouter(t)

	created := decodeJob(t, doJSON(t, router, http.MethodPost, "/api/v1/jobs", gin.H{
		"address":     "12 Harbour View Road, Northcote",
		"customer":    gin.H{"name": "Meridian Developments"},
		"intendedUse": "residential",
	}))

	w := doJSON(t, router, http.MethodPatch, "/api/v1/jobs/"+created.ID.String(), gin.H{
		"owner": "tom",
	})
	require.Equal(t, http.StatusOK, w.Code)

	job := decodeJob(t, w)
	assert.Equal(t, "tom", job.Owner)
	assert.Equal(t, "residential", job.IntendedUse, "absent fields are untouched")
	assert.Equal(t, "Meridian Developments", job.Customer.Name)
}

func TestListJobsEndpoint(t *testing.T) {
	router, _ := setupJobRouter(t)

	for _, owner := range []string{"sarah", "tom"} {
		w := doJSON(t, router, http.MethodPost, "/api/v1/jobs", gin.H{
			"address":  "12 Harbour View Road, Northcote",
			"customer": gin.H{"name": "Meridian Developments"},
			"owner":    owner,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/jobs?owner=sarah", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Total)
	require.Len(t, response.Jobs, 1)
	assert.Equal(t, "sarah", response.Jobs[0].Owner)

	w = doJSON(t, router, http.MethodGet, "/api/v1/jobs?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "limit above the cap is rejected")
}
