package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"

	"mailcanvas/backend/internal/services"
	"mailcanvas/backend/internal/tasks"
)

// IAsynqClient abstracts the asynq client so handler tests can mock
// enqueueing.
type IAsynqClient interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RestTemplateHandler handles REST requests for email templates.
type RestTemplateHandler struct {
	templateService services.ITemplateService
	taskClient      IAsynqClient
}

// NewRestTemplateHandler creates a new RestTemplateHandler.
func NewRestTemplateHandler(templateService services.ITemplateService, taskClient IAsynqClient) *RestTemplateHandler {
	return &RestTemplateHandler{
		templateService: templateService,
		taskClient:      taskClient,
	}
}

// statusForTemplateError is the kind-to-status table for id-keyed template
// operations: a missing record is 404, every other service failure
// (malformed id included) is 400.
func statusForTemplateError(err error) int {
	if errors.Is(err, services.ErrTemplateNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

type createTemplateRequest struct {
	Name   string `json:"name"`
	Design bson.M `json:"design"`
	HTML   string `json:"html"`
}

type updateTemplateRequest struct {
	Name   string `json:"name"`
	Design bson.M `json:"design"`
	HTML   string `json:"html"`
}

type sendEmailRequest struct {
	TemplateID string `json:"templateId"`
	Recipient  string `json:"recipient"`
	Subject    string `json:"subject"`
}

// CreateTemplate handles POST /api/templates.
func (h *RestTemplateHandler) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}

	template, err := h.templateService.CreateTemplate(c.Request.Context(), services.CreateTemplateInput{
		Name:   req.Name,
		Design: req.Design,
		HTML:   req.HTML,
	})
	if err != nil {
		log.Printf("Error saving template: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	log.Printf("Template saved with ID: %s", template.ID.Hex())
	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"message":   "Template saved successfully",
		"id":        template.ID.Hex(),
		"name":      template.Name,
		"createdAt": template.CreatedAt,
	})
}

// GetAllTemplates handles GET /api/templates.
func (h *RestTemplateHandler) GetAllTemplates(c *gin.Context) {
	templates, err := h.templateService.GetAllTemplates(c.Request.Context())
	if err != nil {
		log.Printf("Error fetching templates: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch templates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"count":     len(templates),
		"templates": templates,
	})
}

// GetTemplateByID handles GET /api/templates/:id.
func (h *RestTemplateHandler) GetTemplateByID(c *gin.Context) {
	template, err := h.templateService.GetTemplateByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Printf("Error fetching template: %v", err)
		c.JSON(statusForTemplateError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"template": template,
	})
}

// GetLatestTemplate handles GET /api/templates/latest. The most recent
// template is returned as a bare object; any failure is a 404.
func (h *RestTemplateHandler) GetLatestTemplate(c *gin.Context) {
	template, err := h.templateService.GetLatestTemplate(c.Request.Context())
	if err != nil {
		log.Printf("Error fetching latest template: %v", err)
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, template)
}

// UpdateTemplate handles PUT /api/templates/:id. Only fields present and
// non-empty in the payload are applied.
func (h *RestTemplateHandler) UpdateTemplate(c *gin.Context) {
	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}

	template, err := h.templateService.UpdateTemplate(c.Request.Context(), c.Param("id"), services.UpdateTemplateInput{
		Name:   req.Name,
		Design: req.Design,
		HTML:   req.HTML,
	})
	if err != nil {
		log.Printf("Error updating template: %v", err)
		c.JSON(statusForTemplateError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Template updated successfully",
		"template": template,
	})
}

// DeleteTemplate handles DELETE /api/templates/:id. Deletion is permanent;
// deleting the same id twice yields a 404 on the second call.
func (h *RestTemplateHandler) DeleteTemplate(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.templateService.DeleteTemplate(c.Request.Context(), id); err != nil {
		log.Printf("Error deleting template: %v", err)
		c.JSON(statusForTemplateError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Template deleted successfully",
		"id":      id,
	})
}

// SearchTemplates handles GET /api/templates/search/:term.
func (h *RestTemplateHandler) SearchTemplates(c *gin.Context) {
	templates, err := h.templateService.SearchTemplates(c.Request.Context(), c.Param("term"))
	if err != nil {
		log.Printf("Error searching templates: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to search templates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"count":     len(templates),
		"templates": templates,
	})
}

// SendEmail handles POST /api/templates/send. Delivery is simulated: the
// template is verified, a background task is enqueued, and the response is
// an acknowledgement. No real mailbox is reached in the default setup.
func (h *RestTemplateHandler) SendEmail(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}

	if req.TemplateID == "" || req.Recipient == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Template ID and recipient are required"})
		return
	}

	template, err := h.templateService.GetTemplateByID(c.Request.Context(), req.TemplateID)
	if err != nil {
		log.Printf("Error sending email: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	log.Printf("Email send request: recipient=%s subject=%q templateId=%s htmlLength=%d",
		req.Recipient, req.Subject, req.TemplateID, len(template.HTML))

	if h.taskClient != nil {
		task, err := tasks.NewEmailSimulateTask(req.TemplateID, req.Recipient, req.Subject)
		if err == nil {
			_, err = h.taskClient.Enqueue(task)
		}
		if err != nil {
			// The endpoint is acknowledgement-only; a failed enqueue does not
			// change the outcome for the caller.
			log.Printf("Failed to enqueue simulated delivery for template %s: %v", req.TemplateID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Email queued for simulated delivery",
		"recipient":  req.Recipient,
		"templateId": req.TemplateID,
	})
}
