package api

import (
	"errors"
	"net/http"

	"kairos/fitness-server/internal/domain"
	"kairos/fitness-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AssignmentHandler exposes the trainer-client relationship operations.
// The notification side effects live here, not in the assignment service:
// the service mutates the relationship, the handler decides what to announce.
type AssignmentHandler struct {
	assignmentService   service.AssignmentService
	notificationService service.NotificationService
	logger              *zap.Logger
}

func NewAssignmentHandler(
	assignmentService service.AssignmentService,
	notificationService service.NotificationService,
	logger *zap.Logger,
) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentService:   assignmentService,
		notificationService: notificationService,
		logger:              logger,
	}
}

// --- DTOs ---

type RequestAssignmentRequest struct {
	TrainerID string `json:"trainerId" binding:"required"`
	Notes     string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

type RemoveAssignmentRequest struct {
	// ClientID is required for trainer- and admin-initiated removal;
	// clients always remove their own assignment.
	ClientID string `json:"clientId,omitempty"`
}

type TrainerSettingsRequest struct {
	Capacity         int  `json:"capacity" binding:"required,min=1"`
	AcceptingClients bool `json:"acceptingClients"`
}

// --- Handler Methods ---

// RequestAssignment lets the authenticated client request a trainer. The
// request activates immediately; conflict and capacity rejections map to
// distinct status codes so the UI can offer different remediation.
func (h *AssignmentHandler) RequestAssignment(c *gin.Context) {
	var req RequestAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	clientID, ok := objectIDFromToken(c)
	if !ok {
		return
	}
	trainerID, err := primitive.ObjectIDFromHex(req.TrainerID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid trainer ID format.")
		return
	}

	view, err := h.assignmentService.RequestAssignment(c.Request.Context(), clientID, trainerID, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrNotATrainer):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrClientAlreadyAssigned):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrTrainerAtCapacity), errors.Is(err, service.ErrTrainerNotAccepting):
			abortWithError(c, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error("assignment request failed", zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, "Failed to request assignment.")
		}
		return
	}

	// Announce the new client to the trainer. Best-effort: a dispatch
	// failure must not fail the assignment that already committed.
	if _, err := h.notificationService.Notify(c.Request.Context(), trainerID, domain.NotificationSystem,
		"New client joined", "A new client joined your roster.", domain.SystemPayload{}); err != nil {
		h.logger.Warn("failed to notify trainer of new client",
			zap.String("trainerId", trainerID.Hex()), zap.Error(err))
	}

	c.JSON(http.StatusCreated, view)
}

// GetTrainerClients returns the authenticated trainer's active roster with
// client profile snapshots.
func (h *AssignmentHandler) GetTrainerClients(c *gin.Context) {
	trainerID, ok := objectIDFromToken(c)
	if !ok {
		return
	}

	roster, err := h.assignmentService.GetTrainerClients(c.Request.Context(), trainerID)
	if err != nil {
		h.logger.Error("failed to load trainer roster", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve clients.")
		return
	}

	c.JSON(http.StatusOK, roster)
}

// GetClientTrainer returns the authenticated client's active assignment, or
// 404 when unassigned.
func (h *AssignmentHandler) GetClientTrainer(c *gin.Context) {
	clientID, ok := objectIDFromToken(c)
	if !ok {
		return
	}

	view, err := h.assignmentService.GetClientTrainer(c.Request.Context(), clientID)
	if err != nil {
		h.logger.Error("failed to load client trainer", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve trainer.")
		return
	}
	if view == nil {
		abortWithError(c, http.StatusNotFound, "No active trainer assignment.")
		return
	}

	c.JSON(http.StatusOK, view)
}

// RemoveAssignment soft-closes an active assignment. Clients close their
// own; trainers may close one of their clients'; admins may close any.
// Removal is idempotent: closing an already-closed assignment is a 204.
func (h *AssignmentHandler) RemoveAssignment(c *gin.Context) {
	callerID, ok := objectIDFromToken(c)
	if !ok {
		return
	}
	role, err := getUserRoleFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "User role not found in context")
		return
	}

	var req RemoveAssignmentRequest
	// Body is optional for client-initiated removal.
	_ = c.ShouldBindJSON(&req)

	clientID := callerID
	if role != domain.RoleClient {
		if req.ClientID == "" {
			abortWithError(c, http.StatusBadRequest, "clientId is required for trainer or admin removal.")
			return
		}
		clientID, err = primitive.ObjectIDFromHex(req.ClientID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid client ID format.")
			return
		}
	}

	// A trainer may only close assignments on their own roster.
	if role == domain.RoleTrainer {
		view, err := h.assignmentService.GetClientTrainer(c.Request.Context(), clientID)
		if err != nil {
			h.logger.Error("failed to verify assignment ownership", zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, "Failed to remove assignment.")
			return
		}
		if view != nil && view.Assignment.TrainerID != callerID {
			abortWithError(c, http.StatusForbidden, "Client is not on your roster.")
			return
		}
	}

	if err := h.assignmentService.RemoveAssignment(c.Request.Context(), clientID); err != nil {
		h.logger.Error("failed to remove assignment", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Failed to remove assignment.")
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateTrainerSettings adjusts the authenticated trainer's capacity and
// accepting flag.
func (h *AssignmentHandler) UpdateTrainerSettings(c *gin.Context) {
	var req TrainerSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	trainerID, ok := objectIDFromToken(c)
	if !ok {
		return
	}

	err := h.assignmentService.UpdateTrainerSettings(c.Request.Context(), trainerID, req.Capacity, req.AcceptingClients)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to update trainer settings", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Failed to update settings.")
		return
	}

	c.Status(http.StatusNoContent)
}

// objectIDFromToken extracts the caller's ObjectID from the JWT context,
// writing the error response itself on failure.
func objectIDFromToken(c *gin.Context) (primitive.ObjectID, bool) {
	idStr, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify caller from token.")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format in token.")
		return primitive.NilObjectID, false
	}
	return id, true
}
