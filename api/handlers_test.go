package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/classpoints/api"
	"github.com/warp/classpoints/ledger"
	"github.com/warp/classpoints/randomcall"
	"github.com/warp/classpoints/redemption"
	"github.com/warp/classpoints/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const owner = "teacher-1"

func newTestRouter(t *testing.T) *chi.Mux {
	store := memory.New()
	h := api.NewHandler(store,
		ledger.New(store),
		redemption.New(store),
		randomcall.New(store),
	)
	return api.NewRouter(h, []string{"*"})
}

// doJSON performs a request as the given owner and decodes the response.
func doJSON(t *testing.T, router http.Handler, method, path, ownerID string, body, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ownerID != "" {
		req.Header.Set("X-Owner-ID", ownerID)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
	}
	return rec
}

func createStudent(t *testing.T, router http.Handler, ownerID, name string) string {
	t.Helper()
	var dto struct {
		ID string `json:"id"`
	}
	rec := doJSON(t, router, http.MethodPost, "/api/students", ownerID,
		map[string]any{"name": name}, &dto)
	require.Equal(t, http.StatusCreated, rec.Code)
	return dto.ID
}

// =============================================================================
// AUTH & VALIDATION
// =============================================================================

func TestAPI_MissingOwnerHeader_Unauthorized(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/students", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_Healthz_NoAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_CreateStudent_MissingName_BadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/students", owner,
		map[string]any{"number": "01"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// POINTS FLOW
// =============================================================================

func TestAPI_ApplyPoints(t *testing.T) {
	// GIVEN: A student
	// WHEN: POSTing a +5 adjustment
	// THEN: 200 with the new balance and the record

	router := newTestRouter(t)
	id := createStudent(t, router, owner, "Ava")

	var resp struct {
		Student struct {
			Points int `json:"points"`
		} `json:"student"`
		Record struct {
			Type   string `json:"type"`
			Points int    `json:"points"`
		} `json:"record"`
	}
	rec := doJSON(t, router, http.MethodPost, "/api/points/apply", owner, map[string]any{
		"student_id": id,
		"delta":      5,
		"reason":     "great answer",
	}, &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, resp.Student.Points)
	assert.Equal(t, "ADD", resp.Record.Type)
}

func TestAPI_ApplyPoints_MissingReason_BadRequest(t *testing.T) {
	router := newTestRouter(t)
	id := createStudent(t, router, owner, "Ava")

	rec := doJSON(t, router, http.MethodPost, "/api/points/apply", owner, map[string]any{
		"student_id": id,
		"delta":      5,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ApplyPoints_UnknownStudent_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/points/apply", owner, map[string]any{
		"student_id": "ghost",
		"delta":      5,
		"reason":     "test",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ResetPoints(t *testing.T) {
	router := newTestRouter(t)
	id := createStudent(t, router, owner, "Ava")

	rec := doJSON(t, router, http.MethodPost, "/api/points/apply", owner, map[string]any{
		"student_id": id, "delta": 7, "reason": "seed",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count   int `json:"count"`
		Changes []struct {
			OldPoints int `json:"old_points"`
			NewPoints int `json:"new_points"`
		} `json:"changes"`
	}
	rec = doJSON(t, router, http.MethodPost, "/api/points/reset", owner, map[string]any{
		"mode":         "ALL",
		"target_value": 0,
		"reason":       "new term",
	}, &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Changes, 1)
	assert.Equal(t, 7, resp.Changes[0].OldPoints)
	assert.Equal(t, 0, resp.Changes[0].NewPoints)
}

func TestAPI_OwnerIsolation(t *testing.T) {
	// GIVEN: teacher-1 created a student
	// WHEN: teacher-2 lists students
	// THEN: The roster is empty

	router := newTestRouter(t)
	createStudent(t, router, owner, "Ava")

	var list struct {
		Total int `json:"total"`
	}
	rec := doJSON(t, router, http.MethodGet, "/api/students", "teacher-2", nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, list.Total)
}

// =============================================================================
// STORE FLOW
// =============================================================================

func TestAPI_RedeemInsufficientPoints_Conflict(t *testing.T) {
	router := newTestRouter(t)
	studentID := createStudent(t, router, owner, "Ava")

	var item struct {
		ID string `json:"id"`
	}
	rec := doJSON(t, router, http.MethodPost, "/api/store/items", owner, map[string]any{
		"name": "Homework pass",
		"cost": 30,
	}, &item)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/store/redeem", owner, map[string]any{
		"student_id": studentID,
		"item_id":    item.ID,
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_RedeemAndCancel(t *testing.T) {
	router := newTestRouter(t)
	studentID := createStudent(t, router, owner, "Ava")

	rec := doJSON(t, router, http.MethodPost, "/api/points/apply", owner, map[string]any{
		"student_id": studentID, "delta": 50, "reason": "seed",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var item struct {
		ID string `json:"id"`
	}
	rec = doJSON(t, router, http.MethodPost, "/api/store/items", owner, map[string]any{
		"name": "Homework pass", "cost": 30, "stock": 2,
	}, &item)
	require.Equal(t, http.StatusCreated, rec.Code)

	var redeemed struct {
		Redemption struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"redemption"`
		Student struct {
			Points int `json:"points"`
		} `json:"student"`
	}
	rec = doJSON(t, router, http.MethodPost, "/api/store/redeem", owner, map[string]any{
		"student_id": studentID,
		"item_id":    item.ID,
	}, &redeemed)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "PENDING", redeemed.Redemption.Status)
	assert.Equal(t, 20, redeemed.Student.Points)

	var cancelled struct {
		Status string `json:"status"`
	}
	rec = doJSON(t, router, http.MethodPost,
		"/api/store/redemptions/"+redeemed.Redemption.ID+"/status", owner,
		map[string]any{"status": "CANCELLED"}, &cancelled)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", cancelled.Status)

	var student struct {
		Points int `json:"points"`
	}
	rec = doJSON(t, router, http.MethodGet, "/api/students/"+studentID, owner, nil, &student)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, student.Points)
}

// =============================================================================
// RANDOM CALL FLOW
// =============================================================================

func TestAPI_PickEmptyRoster_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/calls/pick", owner, map[string]any{}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_PickAndHistory(t *testing.T) {
	router := newTestRouter(t)
	createStudent(t, router, owner, "Ava")

	var picked struct {
		Student struct {
			Name string `json:"name"`
		} `json:"student"`
	}
	rec := doJSON(t, router, http.MethodPost, "/api/calls/pick", owner, map[string]any{}, &picked)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ava", picked.Student.Name)

	var history struct {
		Total int `json:"total"`
	}
	rec = doJSON(t, router, http.MethodGet, "/api/calls", owner, nil, &history)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, history.Total)
}

// =============================================================================
// DEMO SEED
// =============================================================================

func TestAPI_SeedDemo(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/demo/seed", owner, nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var students struct {
		Total int `json:"total"`
	}
	rec = doJSON(t, router, http.MethodGet, "/api/students", owner, nil, &students)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, students.Total)

	var rules struct {
		Total int `json:"total"`
	}
	rec = doJSON(t, router, http.MethodGet, "/api/rules", owner, nil, &rules)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, rules.Total)

	var items struct {
		Total int `json:"total"`
	}
	rec = doJSON(t, router, http.MethodGet, "/api/store/items", owner, nil, &items)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, items.Total)
}
