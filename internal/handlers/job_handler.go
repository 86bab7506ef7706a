package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	apierrors "github.com/parcelworks/siteline/internal/errors"
	"github.com/parcelworks/siteline/internal/models"
	"github.com/parcelworks/siteline/internal/repository"
	"github.com/parcelworks/siteline/internal/services"
)

// JobHandler handles job-related HTTP requests.
type JobHandler struct {
	orchestrator *services.JobOrchestrator
}

// NewJobHandler creates a new JobHandler instance.
func NewJobHandler(orchestrator *services.JobOrchestrator) *JobHandler {
	return &JobHandler{orchestrator: orchestrator}
}

// CreateJobRequest is the request body for creating a job. Exactly one of
// address, titleReference, coordinates, or locationId must be supplied.
type CreateJobRequest struct {
	Address        string   `json:"address"`
	TitleReference string   `json:"titleReference"`
	Latitude       *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude      *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
	LocationID     string   `json:"locationId" binding:"omitempty,uuid"`

	Customer                models.CustomerInfo `json:"customer"`
	IntendedUse             string              `json:"intendedUse"`
	Owner                   string              `json:"owner"`
	AutoStartDataCollection bool                `json:"autoStartDataCollection"`
}

// UpdateJobRequest is the request body for a partial metadata update.
type UpdateJobRequest struct {
	Customer    *models.CustomerInfo `json:"customer"`
	IntendedUse *string              `json:"intendedUse"`
	Owner       *string              `json:"owner"`
}

// UpdateStatusRequest is the request body for a lifecycle transition.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RefreshRequest names the sections to force-refresh. Empty means all.
type RefreshRequest struct {
	Sections []string `json:"sections"`
}

// ListJobsResponse is the paginated job listing payload.
type ListJobsResponse struct {
	Jobs   []*models.Job `json:"jobs"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Create handles POST /api/v1/jobs.
func (h *JobHandler) Create(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	locator := services.Locator{
		Address:        req.Address,
		TitleReference: req.TitleReference,
	}
	if req.LocationID != "" {
		id, err := uuid.Parse(req.LocationID)
		if err != nil {
			apierrors.BadRequest(c, "Invalid location id", nil)
			return
		}
		locator.LocationID = id
	}
	if req.Latitude != nil && req.Longitude != nil {
		locator.Coordinates = &services.Coordinates{
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
		}
	}

	job, err := h.orchestrator.CreateJob(c.Request.Context(), services.CreateJobRequest{
		Locator:                 locator,
		Customer:                req.Customer,
		IntendedUse:             req.IntendedUse,
		Owner:                   req.Owner,
		AutoStartDataCollection: req.AutoStartDataCollection,
	})
	if err != nil {
		h.respondError(c, err, "Failed to create job")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job": job})
}

// Get handles GET /api/v1/jobs/:id. The path segment may be the job id or
// its human-readable reference.
func (h *JobHandler) Get(c *gin.Context) {
	key := c.Param("id")

	var job *models.Job
	var err error
	if id, parseErr := uuid.Parse(key); parseErr == nil {
		job, err = h.orchestrator.GetJob(c.Request.Context(), id)
	} else {
		job, err = h.orchestrator.GetJobByReference(c.Request.Context(), key)
	}
	if err != nil {
		h.respondError(c, err, "Failed to load job")
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// List handles GET /api/v1/jobs with filter, pagination, and sort params.
func (h *JobHandler) List(c *gin.Context) {
	filter := repository.JobFilter{
		Owner:       c.Query("owner"),
		Status:      models.JobStatus(c.Query("status")),
		IntendedUse: c.Query("intendedUse"),
		Query:       c.Query("q"),
	}
	if locationID := c.Query("locationId"); locationID != "" {
		id, err := uuid.Parse(locationID)
		if err != nil {
			apierrors.BadRequest(c, "Invalid location id", nil)
			return
		}
		filter.LocationID = id
	}
	if from := c.Query("createdFrom"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			apierrors.BadRequest(c, "Invalid createdFrom timestamp", nil)
			return
		}
		filter.CreatedFrom = &t
	}
	if to := c.Query("createdTo"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			apierrors.BadRequest(c, "Invalid createdTo timestamp", nil)
			return
		}
		filter.CreatedTo = &t
	}

	page := repository.JobPage{
		SortBy:     c.DefaultQuery("sortBy", "created_at"),
		Descending: c.Query("order") == "desc",
	}
	var pagination struct {
		Limit  int `form:"limit,default=50" binding:"min=1,max=200"`
		Offset int `form:"offset,default=0" binding:"min=0"`
	}
	if err := c.ShouldBindQuery(&pagination); err != nil {
		apierrors.BadRequest(c, "Invalid pagination parameters", nil)
		return
	}
	page.Limit = pagination.Limit
	page.Offset = pagination.Offset

	jobs, total, err := h.orchestrator.ListJobs(c.Request.Context(), filter, page)
	if err != nil {
		h.respondError(c, err, "Failed to list jobs")
		return
	}
	c.JSON(http.StatusOK, ListJobsResponse{
		Jobs:   jobs,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// Update handles PATCH /api/v1/jobs/:id.
func (h *JobHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	job, err := h.orchestrator.UpdateJob(c.Request.Context(), id, services.JobUpdate{
		Customer:    req.Customer,
		IntendedUse: req.IntendedUse,
		Owner:       req.Owner,
	})
	if err != nil {
		h.respondError(c, err, "Failed to update job")
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// UpdateStatus handles PUT /api/v1/jobs/:id/status.
func (h *JobHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	job, err := h.orchestrator.UpdateStatus(c.Request.Context(), id, models.JobStatus(req.Status))
	if err != nil {
		h.respondError(c, err, "Failed to update job status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// Cancel handles POST /api/v1/jobs/:id/cancel.
func (h *JobHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	job, err := h.orchestrator.CancelJob(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to cancel job")
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// Collect handles POST /api/v1/jobs/:id/collect.
func (h *JobHandler) Collect(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	job, err := h.orchestrator.RunDataCollection(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to run data collection")
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// Refresh handles POST /api/v1/jobs/:id/refresh.
func (h *JobHandler) Refresh(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}
	sections := make([]models.Section, 0, len(req.Sections))
	for _, s := range req.Sections {
		sections = append(sections, models.Section(s))
	}

	job, err := h.orchestrator.RefreshSections(c.Request.Context(), id, sections)
	if err != nil {
		h.respondError(c, err, "Failed to refresh sections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// parseID parses the :id path parameter, responding with a 400 on failure.
func (h *JobHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid job id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps service-level errors onto the API error taxonomy.
func (h *JobHandler) respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrJobNotFound),
		errors.Is(err, services.ErrLocationNotFound):
		apierrors.NotFound(c, "Job or location not found")
	case errors.Is(err, services.ErrNotResolvable):
		apierrors.BadRequest(c, "The supplied locator could not be resolved to a property", nil)
	case errors.Is(err, services.ErrInvalidLocator),
		errors.Is(err, services.ErrUnknownSection),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrIllegalTransition):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, message, err)
	}
}
