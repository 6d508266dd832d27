/*
handlers.go - HTTP API handlers for the classroom points engine

PURPOSE:
  Exposes the engines via REST API. Handles HTTP request/response, JSON
  serialization, input validation, and delegates to domain logic.

ENDPOINTS:
  Students:
    GET    /api/students                   List roster
    POST   /api/students                   Create student
    GET    /api/students/{id}              Get student
    DELETE /api/students/{id}             Archive student
    GET    /api/students/{id}/records      Point history
    GET    /api/students/{id}/verify       Replay balance check
    POST   /api/groups                     Create group
    POST   /api/tags                       Create tag
    POST   /api/tags/{id}/students         Tag a student

  Points:
    POST   /api/points/apply               Single adjustment
    POST   /api/points/apply-batch         Batch adjustment
    POST   /api/points/reset               Cohort reset
    GET    /api/points/records             Full record listing

  Rules:
    GET    /api/rules                      List rule templates
    POST   /api/rules                      Create rule template

  Store:
    GET    /api/store/items                List items
    POST   /api/store/items                Create item
    POST   /api/store/redeem               Redeem an item
    GET    /api/store/redemptions          List redemptions
    POST   /api/store/redemptions/{id}/status  Fulfill or cancel

  Random call:
    POST   /api/calls/pick                 Draw a student
    GET    /api/calls                      Call history

ERROR HANDLING:
  Domain errors map to status codes by type, never by message:
  - 400: validation
  - 403: cross-owner access
  - 404: missing entity, empty call pool
  - 409: insufficient points, out of stock, inactive, archived
  - 500: everything else

OWNERSHIP:
  Every handler reads the owner id the middleware resolved from the
  X-Owner-ID header. Authentication itself lives outside this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - seed.go: Demo classroom loader
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warp/classpoints/classroom"
	"github.com/warp/classpoints/ledger"
	"github.com/warp/classpoints/randomcall"
	"github.com/warp/classpoints/redemption"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    classroom.Store
	Ledger   *ledger.Engine
	Shop     *redemption.Engine
	Caller   *randomcall.Selector
	validate *validator.Validate

	// AvoidHours is the default random-call window when the request
	// leaves it unset.
	AvoidHours int
}

// NewHandler wires the engines around one store.
func NewHandler(store classroom.Store, lg *ledger.Engine, shop *redemption.Engine, caller *randomcall.Selector) *Handler {
	return &Handler{
		Store:      store,
		Ledger:     lg,
		Shop:       shop,
		Caller:     caller,
		validate:   validator.New(),
		AvoidHours: randomcall.DefaultAvoidHours,
	}
}

// decode parses and validates a JSON request body.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &classroom.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &classroom.ValidationError{
				Field:   verrs[0].Field(),
				Message: "failed " + verrs[0].Tag() + " validation",
			}
		}
		return err
	}
	return nil
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns the roster.
// GET /api/students?group_id=&tag_id=&include_archived=
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := classroom.StudentFilter{
		GroupID:         q.Get("group_id"),
		TagID:           q.Get("tag_id"),
		IncludeArchived: q.Get("include_archived") == "true",
	}

	students, err := h.Store.ListStudents(r.Context(), ownerID(r), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = toStudentDTO(s)
	}
	writeJSON(w, http.StatusOK, ListResponse[StudentDTO]{Items: dtos, Total: len(dtos)})
}

// CreateStudent adds a student to the roster.
// POST /api/students
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	s := classroom.Student{
		ID:      uuid.NewString(),
		OwnerID: ownerID(r),
		Name:    req.Name,
		Number:  req.Number,
		GroupID: req.GroupID,
	}
	if err := h.Store.SaveStudent(r.Context(), s); err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := h.Store.GetStudent(r.Context(), s.OwnerID, s.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(created))
}

// GetStudent returns one student.
// GET /api/students/{id}
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.GetStudent(r.Context(), ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(s))
}

// ArchiveStudent soft-deletes a student. History is kept.
// DELETE /api/students/{id}
func (h *Handler) ArchiveStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.ArchiveStudent(r.Context(), ownerID(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StudentRecords returns one student's point history.
// GET /api/students/{id}/records
func (h *Handler) StudentRecords(w http.ResponseWriter, r *http.Request) {
	f := classroom.RecordFilter{
		StudentID: chi.URLParam(r, "id"),
		Type:      classroom.RecordType(r.URL.Query().Get("type")),
		Page:      pageFromQuery(r),
	}

	views, total, err := h.Store.ListRecords(r.Context(), ownerID(r), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]PointRecordDTO, len(views))
	for i, v := range views {
		dtos[i] = toRecordViewDTO(v)
	}
	writeJSON(w, http.StatusOK, ListResponse[PointRecordDTO]{Items: dtos, Total: total})
}

// VerifyStudent replays the record history against the materialized balance.
// GET /api/students/{id}/verify
func (h *Handler) VerifyStudent(w http.ResponseWriter, r *http.Request) {
	res, err := h.Ledger.Verify(r.Context(), ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerifyDTO(*res))
}

// CreateGroup creates a group.
// POST /api/groups
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	g := classroom.Group{ID: uuid.NewString(), OwnerID: ownerID(r), Name: req.Name}
	if err := h.Store.SaveGroup(r.Context(), g); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, GroupDTO{ID: g.ID, Name: g.Name})
}

// CreateTag creates a tag.
// POST /api/tags
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	t := classroom.Tag{ID: uuid.NewString(), OwnerID: ownerID(r), Name: req.Name}
	if err := h.Store.SaveTag(r.Context(), t); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, TagDTO{ID: t.ID, Name: t.Name})
}

// TagStudent attaches a tag to a student.
// POST /api/tags/{id}/students
func (h *Handler) TagStudent(w http.ResponseWriter, r *http.Request) {
	var req TagStudentRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Store.TagStudent(r.Context(), ownerID(r), req.StudentID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// POINTS HANDLERS
// =============================================================================

// ApplyPoints applies a single adjustment.
// POST /api/points/apply
func (h *Handler) ApplyPoints(w http.ResponseWriter, r *http.Request) {
	var req ApplyPointsRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.Ledger.Apply(r.Context(), ownerID(r), ledger.ApplyInput{
		StudentID: req.StudentID,
		Delta:     req.Delta,
		Reason:    req.Reason,
		RuleID:    req.RuleID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ApplyPointsResponse{
		Student: toStudentDTO(res.Student),
		Record:  toRecordDTO(res.Record),
	})
}

// ApplyBatch applies one value to several students, all-or-nothing.
// POST /api/points/apply-batch
func (h *Handler) ApplyBatch(w http.ResponseWriter, r *http.Request) {
	var req ApplyBatchRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.Ledger.ApplyToMany(r.Context(), ownerID(r), ledger.BatchInput{
		StudentIDs: req.StudentIDs,
		Value:      req.Value,
		Reason:     req.Reason,
		RuleID:     req.RuleID,
		Type:       classroom.RecordType(req.Type),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ApplyBatchResponse{
		Students: make([]StudentDTO, len(res.Students)),
		Records:  make([]PointRecordDTO, len(res.Records)),
	}
	for i, s := range res.Students {
		resp.Students[i] = toStudentDTO(s)
	}
	for i, rec := range res.Records {
		resp.Records[i] = toRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetPoints sets a cohort's balances to a target value.
// POST /api/points/reset
func (h *Handler) ResetPoints(w http.ResponseWriter, r *http.Request) {
	var req ResetPointsRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.Ledger.ResetPoints(r.Context(), ownerID(r), ledger.ResetInput{
		Selector: ledger.ResetSelector{
			Mode:       ledger.ResetMode(req.Mode),
			GroupID:    req.GroupID,
			TagID:      req.TagID,
			StudentIDs: req.StudentIDs,
		},
		TargetValue: req.TargetValue,
		Reason:      req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ResetPointsResponse{
		Count:   res.Count,
		Changes: make([]ResetChangeDTO, len(res.Changes)),
	}
	for i, c := range res.Changes {
		resp.Changes[i] = ResetChangeDTO{
			StudentID: c.StudentID,
			Name:      c.Name,
			OldPoints: c.OldPoints,
			NewPoints: c.NewPoints,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListRecords returns the class-wide point history.
// GET /api/points/records?student_id=&type=&page=&page_size=
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	f := classroom.RecordFilter{
		StudentID: r.URL.Query().Get("student_id"),
		Type:      classroom.RecordType(r.URL.Query().Get("type")),
		Page:      pageFromQuery(r),
	}

	views, total, err := h.Store.ListRecords(r.Context(), ownerID(r), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]PointRecordDTO, len(views))
	for i, v := range views {
		dtos[i] = toRecordViewDTO(v)
	}
	writeJSON(w, http.StatusOK, ListResponse[PointRecordDTO]{Items: dtos, Total: total})
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns the rule templates.
// GET /api/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListRules(r.Context(), ownerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i, rl := range rules {
		dtos[i] = toRuleDTO(rl)
	}
	writeJSON(w, http.StatusOK, ListResponse[RuleDTO]{Items: dtos, Total: len(dtos)})
}

// CreateRule creates a rule template. The record type follows the sign of
// the point value.
// POST /api/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	typ := classroom.RecordAdd
	if req.Points < 0 {
		typ = classroom.RecordSubtract
	}
	rule := classroom.PointRule{
		ID:       uuid.NewString(),
		OwnerID:  ownerID(r),
		Name:     req.Name,
		Points:   req.Points,
		Type:     typ,
		IsActive: true,
	}
	if err := h.Store.SaveRule(r.Context(), rule); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(rule))
}

// =============================================================================
// STORE HANDLERS
// =============================================================================

// ListItems returns the store catalog.
// GET /api/store/items?active_only=
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListItems(r.Context(), ownerID(r), r.URL.Query().Get("active_only") == "true")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toItemDTO(it)
	}
	writeJSON(w, http.StatusOK, ListResponse[ItemDTO]{Items: dtos, Total: len(dtos)})
}

// CreateItem adds an item to the catalog.
// POST /api/store/items
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	it := classroom.StoreItem{
		ID:          uuid.NewString(),
		OwnerID:     ownerID(r),
		Name:        req.Name,
		Description: req.Description,
		Cost:        req.Cost,
		Stock:       req.Stock,
		IsActive:    true,
	}
	if err := h.Store.SaveItem(r.Context(), it); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemDTO(it))
}

// Redeem spends a student's points on an item.
// POST /api/store/redeem
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.Shop.Redeem(r.Context(), ownerID(r), redemption.RedeemInput{
		StudentID: req.StudentID,
		ItemID:    req.ItemID,
		Notes:     req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RedeemResponse{
		Redemption: toRedemptionDTO(res.Redemption),
		Student:    toStudentDTO(res.Student),
		Item:       toItemDTO(res.Item),
	})
}

// ListRedemptions returns redemption history.
// GET /api/store/redemptions?student_id=&status=&page=&page_size=
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	f := classroom.RedemptionFilter{
		StudentID: r.URL.Query().Get("student_id"),
		Status:    classroom.RedemptionStatus(r.URL.Query().Get("status")),
		Page:      pageFromQuery(r),
	}

	views, total, err := h.Store.ListRedemptions(r.Context(), ownerID(r), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RedemptionDTO, len(views))
	for i, v := range views {
		dtos[i] = toRedemptionViewDTO(v)
	}
	writeJSON(w, http.StatusOK, ListResponse[RedemptionDTO]{Items: dtos, Total: total})
}

// UpdateRedemptionStatus fulfills or cancels a redemption.
// POST /api/store/redemptions/{id}/status
func (h *Handler) UpdateRedemptionStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateRedemptionRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	view, err := h.Shop.UpdateStatus(r.Context(), ownerID(r), chi.URLParam(r, "id"),
		classroom.RedemptionStatus(req.Status), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionViewDTO(*view))
}

// =============================================================================
// RANDOM CALL HANDLERS
// =============================================================================

// PickStudent draws a student, or records a manual call-out.
// POST /api/calls/pick
func (h *Handler) PickStudent(w http.ResponseWriter, r *http.Request) {
	var req PickRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Mode == string(classroom.CallManual) {
		view, err := h.Caller.RecordManual(r.Context(), ownerID(r), req.StudentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCallDTO(*view))
		return
	}

	avoid := h.AvoidHours
	if req.AvoidHours != nil {
		avoid = *req.AvoidHours
	}
	res, err := h.Caller.Pick(r.Context(), ownerID(r), randomcall.PickInput{
		AvoidHours: avoid,
		ExcludeIDs: req.ExcludeIDs,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PickResponse{
		Student:        toStudentDTO(res.Student),
		AvoidResetUsed: res.AvoidResetUsed,
		Message:        res.Message,
	})
}

// ListCalls returns the call-out history.
// GET /api/calls?page=&page_size=
func (h *Handler) ListCalls(w http.ResponseWriter, r *http.Request) {
	views, total, err := h.Caller.History(r.Context(), ownerID(r), classroom.CallFilter{Page: pageFromQuery(r)})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]CallDTO, len(views))
	for i, v := range views {
		dtos[i] = toCallDTO(v)
	}
	writeJSON(w, http.StatusOK, ListResponse[CallDTO]{Items: dtos, Total: total})
}

// =============================================================================
// HELPERS
// =============================================================================

func pageFromQuery(r *http.Request) classroom.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return classroom.Page{Number: number, Size: size}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeDomainError maps a domain error to an HTTP status by type.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case classroom.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, classroom.ErrForbidden):
		writeError(w, http.StatusForbidden, "Not allowed", err)
	case classroom.IsNotFound(err), errors.Is(err, classroom.ErrNoStudentsAvailable):
		writeError(w, http.StatusNotFound, "Not found", err)
	case classroom.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
