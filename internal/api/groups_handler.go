package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commsync/commsync/internal/db"
	"github.com/commsync/commsync/internal/models"
)

// GroupsHandler handles contact-group CRUD requests.
type GroupsHandler struct {
	pool *pgxpool.Pool
}

// NewGroupsHandler creates a new GroupsHandler instance.
func NewGroupsHandler(pool *pgxpool.Pool) *GroupsHandler {
	return &GroupsHandler{pool: pool}
}

// groupRequest is the create/update payload. Member lists have set
// semantics; duplicates and surrounding whitespace are dropped.
type groupRequest struct {
	Name         string   `json:"name"`
	Emails       []string `json:"emails"`
	PhoneNumbers []string `json:"phone_numbers"`
}

// Handle dispatches on method for the /api/v1/groups endpoint.
func (h *GroupsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *GroupsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	groups, err := db.ListGroups(ctx, h.pool, userID)
	if err != nil {
		log.Printf("GroupsHandler: Failed to list groups: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if groups == nil {
		groups = []models.Group{}
	}

	if !WriteJSONResponse(w, groups) {
		return
	}
}

func (h *GroupsHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req groupRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	group := models.Group{
		UserID:       userID,
		Name:         strings.TrimSpace(req.Name),
		Emails:       normalizeMembers(req.Emails, strings.ToLower),
		PhoneNumbers: normalizeMembers(req.PhoneNumbers, nil),
	}

	if err := db.CreateGroup(ctx, h.pool, &group); err != nil {
		log.Printf("GroupsHandler: Failed to create group: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if !WriteJSONResponse(w, group) {
		return
	}
}

func (h *GroupsHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	groupID := r.URL.Query().Get("id")
	if groupID == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}

	var req groupRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	group := models.Group{
		ID:           groupID,
		UserID:       userID,
		Name:         strings.TrimSpace(req.Name),
		Emails:       normalizeMembers(req.Emails, strings.ToLower),
		PhoneNumbers: normalizeMembers(req.PhoneNumbers, nil),
	}

	err := db.UpdateGroup(ctx, h.pool, &group)
	if errors.Is(err, db.ErrGroupNotFound) {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("GroupsHandler: Failed to update group: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !WriteJSONResponse(w, group) {
		return
	}
}

func (h *GroupsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	groupID := r.URL.Query().Get("id")
	if groupID == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}

	err := db.DeleteGroup(ctx, h.pool, userID, groupID)
	if errors.Is(err, db.ErrGroupNotFound) {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("GroupsHandler: Failed to delete group: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// normalizeMembers trims, optionally transforms, and deduplicates a member
// list while preserving first-seen order.
func normalizeMembers(members []string, transform func(string) string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if transform != nil {
			m = transform(m)
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
