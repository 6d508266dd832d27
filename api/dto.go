/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes crossing the wire. Requests carry validation
  tags checked by go-playground/validator before any domain call;
  responses are flat projections of the domain types with formatted
  timestamps.

CONVENTIONS:
  - snake_case JSON field names
  - timestamps as RFC3339
  - list endpoints wrap results in ListResponse with a total count

SEE ALSO:
  - handlers.go: Where these are decoded, validated, and filled
*/
package api

import (
	"time"

	"github.com/warp/classpoints/classroom"
	"github.com/warp/classpoints/ledger"
)

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ListResponse wraps paginated listings.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// =============================================================================
// STUDENTS
// =============================================================================

type CreateStudentRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Number  string `json:"number" validate:"max=20"`
	GroupID string `json:"group_id"`
}

type StudentDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Number     string `json:"number,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
	Points     int    `json:"points"`
	IsArchived bool   `json:"is_archived"`
	CreatedAt  string `json:"created_at"`
}

func toStudentDTO(s classroom.Student) StudentDTO {
	return StudentDTO{
		ID:         s.ID,
		Name:       s.Name,
		Number:     s.Number,
		GroupID:    s.GroupID,
		Points:     s.Points,
		IsArchived: s.IsArchived,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

type CreateGroupRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type GroupDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateTagRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type TagDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TagStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// =============================================================================
// POINTS
// =============================================================================

type ApplyPointsRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Delta     int    `json:"delta" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=200"`
	RuleID    string `json:"rule_id"`
}

type ApplyPointsResponse struct {
	Student StudentDTO     `json:"student"`
	Record  PointRecordDTO `json:"record"`
}

type ApplyBatchRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
	Value      int      `json:"value"`
	Reason     string   `json:"reason" validate:"required,max=200"`
	RuleID     string   `json:"rule_id"`
	Type       string   `json:"type" validate:"omitempty,oneof=ADD SUBTRACT RESET"`
}

type ApplyBatchResponse struct {
	Students []StudentDTO     `json:"students"`
	Records  []PointRecordDTO `json:"records"`
}

type ResetPointsRequest struct {
	Mode        string   `json:"mode" validate:"required,oneof=ALL GROUP TAG SELECTED"`
	GroupID     string   `json:"group_id" validate:"required_if=Mode GROUP"`
	TagID       string   `json:"tag_id" validate:"required_if=Mode TAG"`
	StudentIDs  []string `json:"student_ids" validate:"required_if=Mode SELECTED"`
	TargetValue int      `json:"target_value"`
	Reason      string   `json:"reason" validate:"required,max=200"`
}

type ResetChangeDTO struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	OldPoints int    `json:"old_points"`
	NewPoints int    `json:"new_points"`
}

type ResetPointsResponse struct {
	Count   int              `json:"count"`
	Changes []ResetChangeDTO `json:"changes"`
}

type PointRecordDTO struct {
	ID            string `json:"id"`
	StudentID     string `json:"student_id"`
	StudentName   string `json:"student_name,omitempty"`
	StudentNumber string `json:"student_number,omitempty"`
	RuleID        string `json:"rule_id,omitempty"`
	RuleName      string `json:"rule_name,omitempty"`
	Points        int    `json:"points"`
	Type          string `json:"type"`
	Reason        string `json:"reason"`
	CreatedAt     string `json:"created_at"`
}

func toRecordDTO(rec classroom.PointRecord) PointRecordDTO {
	return PointRecordDTO{
		ID:        rec.ID,
		StudentID: rec.StudentID,
		RuleID:    rec.RuleID,
		Points:    rec.Points,
		Type:      string(rec.Type),
		Reason:    rec.Reason,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
}

func toRecordViewDTO(v classroom.RecordView) PointRecordDTO {
	dto := toRecordDTO(v.PointRecord)
	dto.StudentName = v.StudentName
	dto.StudentNumber = v.StudentNumber
	dto.RuleName = v.RuleName
	return dto
}

type VerifyResponse struct {
	StudentID  string `json:"student_id"`
	Balance    int    `json:"balance"`
	Replayed   int    `json:"replayed"`
	Consistent bool   `json:"consistent"`
}

func toVerifyDTO(v ledger.VerifyResult) VerifyResponse {
	return VerifyResponse{
		StudentID:  v.StudentID,
		Balance:    v.Balance,
		Replayed:   v.Replayed,
		Consistent: v.Consistent,
	}
}

// =============================================================================
// RULES
// =============================================================================

type CreateRuleRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Points int    `json:"points" validate:"required"`
}

type RuleDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

func toRuleDTO(r classroom.PointRule) RuleDTO {
	return RuleDTO{
		ID:       r.ID,
		Name:     r.Name,
		Points:   r.Points,
		Type:     string(r.Type),
		IsActive: r.IsActive,
	}
}

// =============================================================================
// STORE & REDEMPTIONS
// =============================================================================

type CreateItemRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Cost        int    `json:"cost" validate:"required,gt=0"`
	Stock       *int   `json:"stock" validate:"omitempty,gte=0"`
}

type ItemDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Cost        int    `json:"cost"`
	Stock       *int   `json:"stock,omitempty"`
	IsActive    bool   `json:"is_active"`
}

func toItemDTO(it classroom.StoreItem) ItemDTO {
	return ItemDTO{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Cost:        it.Cost,
		Stock:       it.Stock,
		IsActive:    it.IsActive,
	}
}

type RedeemRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ItemID    string `json:"item_id" validate:"required"`
	Notes     string `json:"notes" validate:"max=500"`
}

type RedeemResponse struct {
	Redemption RedemptionDTO `json:"redemption"`
	Student    StudentDTO    `json:"student"`
	Item       ItemDTO       `json:"item"`
}

type UpdateRedemptionRequest struct {
	Status string `json:"status" validate:"required,oneof=FULFILLED CANCELLED"`
	Notes  string `json:"notes" validate:"max=500"`
}

type RedemptionDTO struct {
	ID          string `json:"id"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`
	ItemID      string `json:"item_id"`
	ItemName    string `json:"item_name,omitempty"`
	Cost        int    `json:"cost"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	RedeemedAt  string `json:"redeemed_at"`
	FulfilledAt string `json:"fulfilled_at,omitempty"`
}

func toRedemptionDTO(r classroom.Redemption) RedemptionDTO {
	dto := RedemptionDTO{
		ID:         r.ID,
		StudentID:  r.StudentID,
		ItemID:     r.ItemID,
		Cost:       r.Cost,
		Status:     string(r.Status),
		Notes:      r.Notes,
		RedeemedAt: r.RedeemedAt.Format(time.RFC3339),
	}
	if r.FulfilledAt != nil {
		dto.FulfilledAt = r.FulfilledAt.Format(time.RFC3339)
	}
	return dto
}

func toRedemptionViewDTO(v classroom.RedemptionView) RedemptionDTO {
	dto := toRedemptionDTO(v.Redemption)
	dto.StudentName = v.StudentName
	dto.ItemName = v.ItemName
	return dto
}

// =============================================================================
// RANDOM CALL
// =============================================================================

type PickRequest struct {
	AvoidHours *int     `json:"avoid_hours" validate:"omitempty,gte=0,lte=720"`
	ExcludeIDs []string `json:"exclude_ids"`
	Mode       string   `json:"mode" validate:"omitempty,oneof=RANDOM MANUAL"`
	StudentID  string   `json:"student_id" validate:"required_if=Mode MANUAL"`
}

type PickResponse struct {
	Student        StudentDTO `json:"student"`
	AvoidResetUsed bool       `json:"avoid_reset_used"`
	Message        string     `json:"message,omitempty"`
}

type CallDTO struct {
	ID          string `json:"id"`
	StudentID   string `json:"student_id,omitempty"`
	StudentName string `json:"student_name,omitempty"`
	Mode        string `json:"mode"`
	CalledAt    string `json:"called_at"`
}

func toCallDTO(v classroom.CallView) CallDTO {
	dto := CallDTO{
		ID:          v.ID,
		StudentName: v.StudentName,
		Mode:        string(v.Mode),
		CalledAt:    v.CalledAt.Format(time.RFC3339),
	}
	if v.StudentID != nil {
		dto.StudentID = *v.StudentID
	}
	return dto
}
