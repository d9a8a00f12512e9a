package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bloodinsight/internal/auth"
	"bloodinsight/internal/service/feedback"
	"bloodinsight/internal/service/gemini"
	"bloodinsight/internal/service/report"
	"bloodinsight/internal/service/settings"
	"bloodinsight/internal/service/usage"
	"bloodinsight/internal/upload"
)

// analyzeTimeout caps the generation call; the upstream model can take tens
// of seconds on large documents.
const analyzeTimeout = 90 * time.Second

// Handler wires HTTP routes to the analysis pipeline and the supporting CRUD
// services.
type Handler struct {
	auth      *auth.Service
	gemini    *gemini.Service
	settings  *settings.Service
	reports   *report.Service
	feedback  *feedback.Service
	usage     *usage.Service
	validator *upload.Validator
}

// NewHandler constructs a Handler instance.
func NewHandler(
	authSvc *auth.Service,
	geminiSvc *gemini.Service,
	settingsSvc *settings.Service,
	reportSvc *report.Service,
	feedbackSvc *feedback.Service,
	usageSvc *usage.Service,
	validator *upload.Validator,
) *Handler {
	return &Handler{
		auth:      authSvc,
		gemini:    geminiSvc,
		settings:  settingsSvc,
		reports:   reportSvc,
		feedback:  feedbackSvc,
		usage:     usageSvc,
		validator: validator,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)

	authed := api.Group("")
	authed.Use(h.auth.Middleware())
	authed.POST("/users/logout", h.logoutUser)
	authed.POST("/upload", h.uploadFile)
	authed.POST("/analyze", h.analyzeFile)
	authed.POST("/analyze-text", h.analyzeText)
	authed.GET("/trends/metrics", h.listMetrics)
	authed.GET("/trends/reports", h.listReports)
	authed.POST("/reports", h.createReport)

	// authentication runs before the admin check so missing credentials
	// always yield 401 and a valid non-admin session yields 403
	admin := authed.Group("/admin")
	admin.Use(h.auth.AdminMiddleware())
	admin.GET("/config", h.getAdminConfig)
	admin.POST("/config", h.postAdminConfig)
	admin.GET("/feedback", h.listFeedback)
	admin.POST("/feedback", h.createFeedback)
	admin.PUT("/feedback", h.updateFeedback)
	admin.DELETE("/feedback", h.deleteFeedback)
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

func failRequest(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// User account endpoints.

type credentialsRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"is_admin":   user.IsAdmin,
		"auth_token": authToken,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	c.Status(http.StatusNoContent)
}

// Upload and analyze pipeline.

func (h *Handler) uploadFile(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		failRequest(c, http.StatusBadRequest, "No file uploaded.")
		return
	}
	declaredMIME := file.Header.Get("Content-Type")
	if err := h.validator.Check(file.Size, declaredMIME); err != nil {
		switch {
		case errors.Is(err, upload.ErrFileTooLarge):
			failRequest(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File size exceeds limit of %d bytes.", h.validator.MaxBytes()))
		default:
			failRequest(c, http.StatusBadRequest, "Unsupported file type.")
		}
		return
	}

	src, err := file.Open()
	if err != nil {
		failRequest(c, http.StatusBadRequest, "Could not read uploaded file.")
		return
	}
	defer src.Close()

	tempPath, err := upload.SaveTemp(src, file.Filename)
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Could not store uploaded file.")
		return
	}
	// the temp file never outlives this request, whatever happens below
	defer upload.RemoveTemp(tempPath)

	handle, err := h.gemini.RegisterFile(c.Request.Context(), userID, tempPath, declaredMIME, file.Filename)
	if err != nil {
		h.failUpload(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "fileId": handle})
}

func (h *Handler) failUpload(c *gin.Context, err error) {
	var upstream *gemini.UpstreamError
	switch {
	case errors.Is(err, gemini.ErrNotConfigured):
		failRequest(c, http.StatusInternalServerError, "File upload service not initialized (API key missing).")
	case errors.As(err, &upstream) && upstream.Kind == gemini.KindInvalidAPIKey:
		failRequest(c, http.StatusInternalServerError, "Invalid API Key configured for Gemini service.")
	case errors.As(err, &upstream) && upstream.Kind == gemini.KindPermission:
		failRequest(c, http.StatusForbidden, "API key lacks permission for file uploads.")
	default:
		failRequest(c, http.StatusInternalServerError, err.Error())
	}
}

type analyzeRequest struct {
	FileID string `json:"fileId"`
}

func (h *Handler) analyzeFile(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FileID == "" {
		failRequest(c, http.StatusBadRequest, "No fileId provided")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
	defer cancel()

	result, err := h.gemini.Analyze(ctx, userID, req.FileID)
	if err != nil {
		h.failAnalyze(c, req.FileID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"analysis":  result.Analysis,
		"timestamp": result.Timestamp,
	})
}

type analyzeTextRequest struct {
	Content string `json:"content"`
}

func (h *Handler) analyzeText(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req analyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failRequest(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
	defer cancel()

	result, err := h.gemini.AnalyzeText(ctx, userID, req.Content)
	if err != nil {
		if errors.Is(err, gemini.ErrEmptyContent) {
			failRequest(c, http.StatusBadRequest, "No content provided")
			return
		}
		h.failAnalyze(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"analysis":  result.Analysis,
		"timestamp": result.Timestamp,
	})
}

func (h *Handler) failAnalyze(c *gin.Context, fileID string, err error) {
	var upstream *gemini.UpstreamError
	switch {
	case errors.Is(err, gemini.ErrInvalidHandle):
		failRequest(c, http.StatusBadRequest, "Missing or invalid file resource name ('fileId') in request body.")
	case errors.Is(err, gemini.ErrNotConfigured):
		failRequest(c, http.StatusInternalServerError, "Analysis service is not configured correctly.")
	case errors.Is(err, context.DeadlineExceeded):
		failRequest(c, http.StatusGatewayTimeout, "Analysis timed out.")
	case errors.As(err, &upstream) && upstream.Kind == gemini.KindInvalidAPIKey:
		failRequest(c, http.StatusInternalServerError, "Invalid API Key configured for Gemini service.")
	case errors.As(err, &upstream) && (upstream.Kind == gemini.KindFileAccess || upstream.Kind == gemini.KindPermission):
		failRequest(c, http.StatusBadRequest,
			fmt.Sprintf("Error accessing uploaded file (%s). It might have expired or permissions are incorrect.", fileID))
	default:
		failRequest(c, http.StatusInternalServerError, err.Error())
	}
}

// Trends and reports.

func (h *Handler) listMetrics(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	metrics, err := h.reports.ListMetrics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	formatted := make([]gin.H, 0, len(metrics))
	for _, m := range metrics {
		formatted = append(formatted, gin.H{
			"id":          m.ID,
			"name":        m.Name,
			"unit":        m.Unit,
			"normalRange": gin.H{"min": m.MinValue, "max": m.MaxValue},
			"description": m.Description,
			"category":    m.Category,
		})
	}
	c.JSON(http.StatusOK, formatted)
}

func (h *Handler) listReports(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	reports, err := h.reports.ListReports(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reports)
}

type createReportRequest struct {
	Name     string                `json:"name"`
	FileID   string                `json:"fileId"`
	Analysis string                `json:"analysis"`
	Readings []report.ReadingInput `json:"readings"`
}

func (h *Handler) createReport(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	created, err := h.reports.CreateReport(c.Request.Context(), userID, req.Name, req.FileID, req.Analysis, req.Readings)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Admin configuration.

func (h *Handler) getAdminConfig(c *gin.Context) {
	prompt, err := h.gemini.SystemPrompt(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	stats, err := h.usage.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	recent, err := h.usage.Recent(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"systemPrompt": prompt, "usage": stats, "recentUsage": recent})
}

type adminConfigRequest struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

func (h *Handler) postAdminConfig(c *gin.Context) {
	var req adminConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	var err error
	switch req.Action {
	case "updateApiKey":
		err = h.settings.UpdateAPIKey(c.Request.Context(), req.Value)
	case "updateSystemPrompt":
		err = h.settings.UpdateSystemPrompt(c.Request.Context(), req.Value)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid action"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Admin feedback CRUD.

func (h *Handler) listFeedback(c *gin.Context) {
	items, err := h.feedback.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	formatted := make([]gin.H, 0, len(items))
	for _, f := range items {
		formatted = append(formatted, gin.H{
			"id":       f.ID,
			"user":     f.UserEmail,
			"date":     f.CreatedAt,
			"category": f.Category,
			"status":   f.Status,
			"message":  f.Message,
		})
	}
	c.JSON(http.StatusOK, formatted)
}

type feedbackRequest struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"userId"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Status   string `json:"status"`
}

func (h *Handler) createFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.UserID == 0 || req.Message == "" || req.Category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields"})
		return
	}
	item, err := h.feedback.Create(c.Request.Context(), req.UserID, req.Message, req.Category, req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) updateFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id"})
		return
	}
	item, err := h.feedback.Update(c.Request.Context(), req.ID, req.Message, req.Category, req.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "feedback not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) deleteFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id"})
		return
	}
	if err := h.feedback.Delete(c.Request.Context(), req.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "feedback not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
