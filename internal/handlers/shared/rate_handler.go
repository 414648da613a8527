package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gofreight/internal/models"
	"gofreight/internal/repositories/interfaces"
	"gofreight/internal/services"
	"gofreight/internal/utils"
	"gofreight/internal/validators"
	"gofreight/pkg/logger"
)

type RateHandler struct {
	rateService   services.RateService
	importService services.ImportService
	rateRepo      interfaces.RateRepository
	logger        *logger.Logger
}

func NewRateHandler(rateService services.RateService, importService services.ImportService, rateRepo interfaces.RateRepository, log *logger.Logger) *RateHandler {
	return &RateHandler{
		rateService:   rateService,
		importService: importService,
		rateRepo:      rateRepo,
		logger:        log,
	}
}

// ListRates returns the compact rate list, filtered by the optional
// search query and variant tab.
func (h *RateHandler) ListRates(c *gin.Context) {
	records, err := h.rateService.LoadAll(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "RATE_LIST_FAILED", "Failed to load rates: "+err.Error())
		return
	}

	tab := services.RateTab(c.DefaultQuery("tab", string(services.RateTabAll)))
	query := c.Query("search")
	filtered := h.rateService.Filter(records, query, tab)
	rows := h.rateService.Project(filtered)

	meta := &utils.Meta{Count: len(rows), Total: int64(len(records))}
	utils.SuccessResponseWithMeta(c, "Rates retrieved successfully", rows, meta)
}

// ListRatesByCategory returns the per-liner tab: exactly the stored set
// for one carrier category, with no tab or text filtering applied.
func (h *RateHandler) ListRatesByCategory(c *gin.Context) {
	category := c.Param("category")

	records, err := h.rateService.LoadByCategory(c.Request.Context(), category)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "RATE_LIST_FAILED", "Failed to load rates: "+err.Error())
		return
	}

	rows := h.rateService.Project(records)
	meta := &utils.Meta{Count: len(rows)}
	utils.SuccessResponseWithMeta(c, "Rates retrieved successfully", rows, meta)
}

// GetRate returns a single record with its decoded payload.
func (h *RateHandler) GetRate(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid rate ID")
		return
	}

	record, err := h.rateService.GetRate(c.Request.Context(), id)
	if err != nil {
		if isNotFound(err) {
			utils.NotFoundResponse(c, "Rate")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "RATE_FETCH_FAILED", "Failed to get rate: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Rate retrieved successfully", record)
}

type batchRequest struct {
	FreightType string                `json:"freight_type"`
	Origin      string                `json:"origin"`
	Destination string                `json:"destination"`
	Routes      []services.RouteDraft `json:"routes"`
}

// CreateRateBatch submits one-to-many route variants sharing an
// origin/destination, each persisted as an independent record.
func (h *RateHandler) CreateRateBatch(c *gin.Context) {
	var request batchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	freightType, err := models.ParseFreightType(request.FreightType)
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	session := services.NewComposerSession(h.rateRepo, h.logger, freightType, request.Origin, request.Destination)
	session.LoadRoutes(request.Routes)

	result, err := session.Submit(c.Request.Context())
	if err != nil {
		var batchErr *services.BatchValidationError
		if errors.As(err, &batchErr) {
			utils.ValidationErrorResponse(c, flattenBatchErrors(batchErr))
			return
		}
		if errors.Is(err, services.ErrNoRealRoutes) {
			utils.BadRequestResponse(c, err.Error())
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "BATCH_CREATE_FAILED", "Failed to create rates: "+err.Error())
		return
	}

	if result.Failed > 0 {
		details := make(map[string]string)
		for _, r := range result.Results {
			if r.Err != nil {
				details[fmt.Sprintf("route_%d", r.DraftID)] = r.Err.Error()
			}
		}
		utils.ErrorResponseWithDetails(c, http.StatusInternalServerError, "BATCH_PARTIAL_FAILURE",
			fmt.Sprintf("Created %d of %d routes", result.Succeeded, result.Succeeded+result.Failed), details)
		return
	}

	utils.CreatedResponse(c, "Rates created successfully", result)
}

// UpdateRate performs a full-record replace.
func (h *RateHandler) UpdateRate(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid rate ID")
		return
	}

	var input models.RateRecordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	record, err := h.rateService.UpdateRate(c.Request.Context(), id, &input)
	if err != nil {
		var verrs validators.ValidationErrors
		if errors.As(err, &verrs) {
			utils.ValidationErrorResponse(c, verrs.Details())
			return
		}
		if isNotFound(err) {
			utils.NotFoundResponse(c, "Rate")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "RATE_UPDATE_FAILED", "Failed to update rate: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Rate updated successfully", record)
}

// DeleteRate removes a record by identifier.
func (h *RateHandler) DeleteRate(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid rate ID")
		return
	}

	if err := h.rateService.DeleteRate(c.Request.Context(), id); err != nil {
		if isNotFound(err) {
			utils.NotFoundResponse(c, "Rate")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "RATE_DELETE_FAILED", "Failed to delete rate: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Rate deleted successfully", nil)
}

// ImportRates accepts a spreadsheet upload scoped to one carrier
// category and bulk-creates the parsed rows.
func (h *RateHandler) ImportRates(c *gin.Context) {
	category := c.PostForm("category")
	if strings.TrimSpace(category) == "" {
		utils.BadRequestResponse(c, "Category is required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "File is required")
		return
	}
	if fileHeader.Size > utils.MaxImportFileSize {
		utils.BadRequestResponse(c, "File is too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "IMPORT_FAILED", "Failed to read file: "+err.Error())
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "IMPORT_FAILED", "Failed to read file: "+err.Error())
		return
	}

	result, err := h.importService.Import(c.Request.Context(), fileHeader.Filename, content, category)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedFile) {
			utils.BadRequestResponse(c, err.Error())
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "IMPORT_FAILED", "Failed to import rates: "+err.Error())
		return
	}

	utils.CreatedResponse(c, "Rates imported successfully", result)
}

// DownloadTemplate serves the reference import file.
func (h *RateHandler) DownloadTemplate(c *gin.Context) {
	data, err := h.importService.Template()
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "TEMPLATE_FAILED", "Failed to build template: "+err.Error())
		return
	}

	c.Header("Content-Disposition", `attachment; filename="rate_import_template.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

func flattenBatchErrors(batchErr *services.BatchValidationError) map[string]string {
	details := make(map[string]string)
	for draftID, errs := range batchErr.Drafts {
		for field, message := range errs.Details() {
			details[fmt.Sprintf("route_%d.%s", draftID, field)] = message
		}
	}
	return details
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
