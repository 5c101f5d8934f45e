package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"pagehub-api/internal/auth"
	"pagehub-api/internal/domain"
	"pagehub-api/internal/http/httperr"
	"pagehub-api/internal/observability/logger"
	"pagehub-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PermissionHandler struct {
	service *service.PermissionService
}

func NewPermissionHandler(svc *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: svc}
}

// bulkSetResponse wraps the per-entry outcomes of a bulk mutation.
type bulkSetResponse struct {
	Results []domain.BulkSetResult `json:"results"`
}

// effectiveRoleResponse pairs the resolved role with the user it was
// resolved for.
type effectiveRoleResponse struct {
	UserID        string               `json:"userId"`
	EffectiveRole domain.EffectiveRole `json:"effectiveRole"`
}

// SetPermission handles POST /v1/workspaces/{workspaceId}/pages/{pageId}/permissions
func (h *PermissionHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	pageID := chi.URLParam(r, "pageId")

	actorID, ok := actorFromClaims(w, r, log)
	if !ok {
		return
	}

	var req domain.SetPagePermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ctx, log, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}

	if !req.Role.IsValid() {
		writeError(w, ctx, log, http.StatusBadRequest, httperr.ErrCodeInvalidRole, "unknown role: "+string(req.Role))
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, ctx, log, http.StatusBadRequest, httperr.ErrCodeValidationError, err.Error())
		return
	}

	log.Info(ctx, "setting page permission",
		zap.String("workspaceId", workspaceID),
		zap.String("pageId", pageID),
		zap.String("actorId", actorID),
		zap.String("role", string(req.Role)),
		zap.Bool("cascadeToChildren", req.CascadeToChildren),
	)

	member, err := h.service.SetPagePermission(ctx, workspaceID, pageID, actorID, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	// A nil member means the request restated the space role and any
	// override row was removed.
	if member == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

// BulkSetPermissions handles POST /v1/workspaces/{workspaceId}/pages/{pageId}/permissions:bulk
func (h *PermissionHandler) BulkSetPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	pageID := chi.URLParam(r, "pageId")

	actorID, ok := actorFromClaims(w, r, log)
	if !ok {
		return
	}

	var req domain.BulkSetPagePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ctx, log, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, ctx, log, http.StatusBadRequest, httperr.ErrCodeValidationError, err.Error())
		return
	}

	log.Info(ctx, "bulk setting page permissions",
		zap.String("workspaceId", workspaceID),
		zap.String("pageId", pageID),
		zap.String("actorId", actorID),
		zap.Int("entries", len(req.Permissions)),
	)

	results, err := h.service.BulkSetPagePermissions(ctx, workspaceID, pageID, actorID, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	status := http.StatusOK
	for _, res := range results {
		if !res.OK {
			status = http.StatusMultiStatus
			break
		}
	}

	writeJSON(w, status, bulkSetResponse{Results: results})
}

// ListPermissions handles GET /v1/workspaces/{workspaceId}/pages/{pageId}/permissions
func (h *PermissionHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	pageID := chi.URLParam(r, "pageId")

	actorID, ok := actorFromClaims(w, r, log)
	if !ok {
		return
	}

	params, ok := listParamsFromQuery(w, r, log)
	if !ok {
		return
	}

	response, err := h.service.ListOverrides(ctx, workspaceID, pageID, actorID, params)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// ListMembers handles GET /v1/workspaces/{workspaceId}/pages/{pageId}/members
func (h *PermissionHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	pageID := chi.URLParam(r, "pageId")

	actorID, ok := actorFromClaims(w, r, log)
	if !ok {
		return
	}

	params, ok := listParamsFromQuery(w, r, log)
	if !ok {
		return
	}

	response, err := h.service.ListMembers(ctx, workspaceID, pageID, actorID, params)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// GetEffectiveRole handles GET /v1/workspaces/{workspaceId}/pages/{pageId}/effective-role
// The userId query parameter defaults to the authenticated actor.
func (h *PermissionHandler) GetEffectiveRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	pageID := chi.URLParam(r, "pageId")

	actorID, ok := actorFromClaims(w, r, log)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = actorID
	}

	log.Info(ctx, "resolving effective role",
		zap.String("workspaceId", workspaceID),
		zap.String("pageId", pageID),
		zap.String("userId", userID),
		zap.String("actorId", actorID),
	)

	eff, err := h.service.GetEffectiveRole(ctx, workspaceID, pageID, userID, actorID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusOK, effectiveRoleResponse{UserID: userID, EffectiveRole: *eff})
}

// actorFromClaims extracts the authenticated actor ID, writing the error
// response itself when the claims are missing or unusable.
func actorFromClaims(w http.ResponseWriter, r *http.Request, log *logger.Logger) (string, bool) {
	ctx := r.Context()

	claims, ok := auth.GetClaims(ctx)
	if !ok {
		writeError(w, ctx, log, http.StatusUnauthorized, "UNAUTHORIZED", "authentication claims not found")
		return "", false
	}

	if claims.ActorID == "" {
		log.Error(ctx, "empty actorID in claims")
		writeError(w, ctx, log, http.StatusInternalServerError, "INTERNAL_ERROR", "invalid authentication claims")
		return "", false
	}

	return claims.ActorID, true
}

// listParamsFromQuery parses q, page, and limit for the listing endpoints.
func listParamsFromQuery(w http.ResponseWriter, r *http.Request, log *logger.Logger) (domain.ListPageMembersParams, bool) {
	ctx := r.Context()

	var params domain.ListPageMembersParams

	if q := r.URL.Query().Get("q"); q != "" {
		params.Query = &q
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			writeError(w, ctx, log, http.StatusBadRequest, httperr.ErrCodeInvalidParameter, "page must be a positive integer")
			return params, false
		}
		params.Page = page
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			writeError(w, ctx, log, http.StatusBadRequest, httperr.ErrCodeInvalidLimit, "limit must be between 1 and 100")
			return params, false
		}
		params.Limit = limit
	}

	return params, true
}

// Helper functions for standardized responses

func writeError(w http.ResponseWriter, ctx context.Context, log *logger.Logger, status int, code, message string) {
	log.Warn(ctx, "request rejected",
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("message", message),
	)
	httperr.WriteError(w, ctx, status, code, message)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func handleServiceError(w http.ResponseWriter, ctx context.Context, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrPageNotFound):
		log.Debug(ctx, "page not found", zap.Error(err))
		httperr.WriteError(w, ctx, http.StatusNotFound, httperr.ErrCodeNotFound, "page not found")
	case errors.Is(err, service.ErrUserNotFound):
		log.Debug(ctx, "user not found", zap.Error(err))
		httperr.WriteError(w, ctx, http.StatusNotFound, httperr.ErrCodeNotFound, "user not found in workspace")
	case errors.Is(err, service.ErrGroupNotFound):
		log.Debug(ctx, "group not found", zap.Error(err))
		httperr.WriteError(w, ctx, http.StatusNotFound, httperr.ErrCodeNotFound, "group not found in workspace")
	case errors.Is(err, service.ErrElevationDenied):
		log.Warn(ctx, "elevation denied", zap.Error(err))
		httperr.Forbidden403(w, ctx, httperr.ErrCodeElevationDenied, "requested role exceeds the principal's space role")
	case errors.Is(err, service.ErrUnauthorized):
		log.Warn(ctx, "unauthorized action", zap.Error(err))
		httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, "insufficient permissions for this action")
	case errors.Is(err, service.ErrInvalidPrincipal):
		log.Warn(ctx, "invalid principal", zap.Error(err))
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidPrincipal, "exactly one of userId and groupId must be set")
	default:
		log.Error(ctx, "unhandled internal server error", zap.Error(err), zap.String("error_details", err.Error()))
		httperr.InternalError500(w, ctx, "an internal error occurred")
	}
}
