package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/carpoolio/carpool-api/internal/repository/memory"
	"github.com/carpoolio/carpool-api/internal/service"
)

// assignCtx builds an Echo context for POST
// /v1/schedule-slots/:id/assignments with an authenticated user.
func assignCtx(e *echo.Echo, slotID, userID uint64, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/v1/schedule-slots/"+fmt.Sprint(slotID)+"/assignments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/schedule-slots/:id/assignments")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(slotID))
	c.Set("user_id", float64(userID)) // as the JWT middleware stores it
	return c, rec
}

type assignTestEnv struct {
	e      *echo.Echo
	store  *memory.Store
	svc    *service.AssignmentService
	userID uint64
	family uint64
	slot   uint64
	va     uint64
}

func newAssignTestEnv(capacity int, override *int) *assignTestEnv {
	st := memory.NewStore()
	userID := uint64(100)
	fam := st.SeedFamily(userID)
	grp := st.SeedGroup("Europe/Berlin", fam)
	slot := st.SeedSlot(grp, time.Now().UTC().Add(24*time.Hour))
	va := st.SeedVehicleAssignment(slot, "Blue Van", capacity, override, nil)
	return &assignTestEnv{
		e:      echo.New(),
		store:  st,
		svc:    service.NewAssignmentService(st, st, nil),
		userID: userID,
		family: fam,
		slot:   slot,
		va:     va,
	}
}

func errorField(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func TestAssignChildCreated(t *testing.T) {
	env := newAssignTestEnv(4, nil)
	child := env.store.SeedChild(env.family, "Ada")
	h := &AssignmentHandler{Assignments: env.svc}

	body := fmt.Sprintf(`{"child_id":%d,"vehicle_assignment_id":%d}`, child, env.va)
	c, rec := assignCtx(env.e, env.slot, env.userID, body)

	assert.NoError(t, h.AssignChild(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Ada", resp["ChildName"])
	assert.Equal(t, "Blue Van", resp["VehicleName"])
}

func TestAssignChildCapacityConflict(t *testing.T) {
	env := newAssignTestEnv(4, nil)
	h := &AssignmentHandler{Assignments: env.svc}

	for i := 0; i < 4; i++ {
		child := env.store.SeedChild(env.family, fmt.Sprintf("Child %d", i+1))
		body := fmt.Sprintf(`{"child_id":%d,"vehicle_assignment_id":%d}`, child, env.va)
		c, rec := assignCtx(env.e, env.slot, env.userID, body)
		assert.NoError(t, h.AssignChild(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	extra := env.store.SeedChild(env.family, "One Too Many")
	body := fmt.Sprintf(`{"child_id":%d,"vehicle_assignment_id":%d}`, extra, env.va)
	c, rec := assignCtx(env.e, env.slot, env.userID, body)
	assert.NoError(t, h.AssignChild(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Vehicle Blue Van is at full capacity (4/4)", errorField(t, rec))
}

func TestAssignChildSeatOverrideConflictMessage(t *testing.T) {
	override := 6
	env := newAssignTestEnv(4, &override)
	h := &AssignmentHandler{Assignments: env.svc}

	for i := 0; i < 6; i++ {
		child := env.store.SeedChild(env.family, fmt.Sprintf("Child %d", i+1))
		body := fmt.Sprintf(`{"child_id":%d,"vehicle_assignment_id":%d}`, child, env.va)
		c, rec := assignCtx(env.e, env.slot, env.userID, body)
		assert.NoError(t, h.AssignChild(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	extra := env.store.SeedChild(env.family, "One Too Many")
	body := fmt.Sprintf(`{"child_id":%d,"vehicle_assignment_id":%d}`, extra, env.va)
	c, rec := assignCtx(env.e, env.slot, env.userID, body)
	assert.NoError(t, h.AssignChild(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Vehicle Blue Van is at full capacity (6/6)", errorField(t, rec))
}

func TestAssignChildSlotNotFound(t *testing.T) {
	env := newAssignTestEnv(4, nil)
	child := env.store.SeedChild(env.family, "Ada")
	h := &AssignmentHandler{Assignments: env.svc}

	body := fmt.Sprintf(`{"child_id":%d,"vehicle_assignment_id":%d}`, child, env.va)
	c, rec := assignCtx(env.e, 9999, env.userID, body)
	assert.NoError(t, h.AssignChild(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssignChildForeignChildForbidden(t *testing.T) {
	env := newAssignTestEnv(4, nil)
	otherFam := env.store.SeedFamily(200)
	foreign := env.store.SeedChild(otherFam, "Eve")
	h := &AssignmentHandler{Assignments: env.svc}

	body := fmt.Sprintf(`{"child_id":%d,"vehicle_assignment_id":%d}`, foreign, env.va)
	c, rec := assignCtx(env.e, env.slot, env.userID, body)
	assert.NoError(t, h.AssignChild(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorField(t, rec))
}

func TestAssignChildDuplicateConflict(t *testing.T) {
	env := newAssignTestEnv(4, nil)
	child := env.store.SeedChild(env.family, "Ada")
	h := &AssignmentHandler{Assignments: env.svc}

	body := fmt.Sprintf(`{"child_id":%d,"vehicle_assignment_id":%d}`, child, env.va)
	c, rec := assignCtx(env.e, env.slot, env.userID, body)
	assert.NoError(t, h.AssignChild(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = assignCtx(env.e, env.slot, env.userID, body)
	assert.NoError(t, h.AssignChild(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.ErrAlreadyAssigned.Error(), errorField(t, rec))
}

func TestAssignChildPastSlotConflict(t *testing.T) {
	env := newAssignTestEnv(4, nil)
	child := env.store.SeedChild(env.family, "Ada")
	env.svc.WithClock(func() time.Time { return time.Now().UTC().Add(48 * time.Hour) })
	h := &AssignmentHandler{Assignments: env.svc}

	body := fmt.Sprintf(`{"child_id":%d,"vehicle_assignment_id":%d}`, child, env.va)
	c, rec := assignCtx(env.e, env.slot, env.userID, body)
	assert.NoError(t, h.AssignChild(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, errorField(t, rec), "has already passed")
}

func TestAssignChildBadBody(t *testing.T) {
	env := newAssignTestEnv(4, nil)
	h := &AssignmentHandler{Assignments: env.svc}

	c, rec := assignCtx(env.e, env.slot, env.userID, `{"child_id":0}`)
	assert.NoError(t, h.AssignChild(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnassignChildNoContent(t *testing.T) {
	env := newAssignTestEnv(4, nil)
	child := env.store.SeedChild(env.family, "Ada")
	h := &AssignmentHandler{Assignments: env.svc}

	body := fmt.Sprintf(`{"child_id":%d,"vehicle_assignment_id":%d}`, child, env.va)
	c, rec := assignCtx(env.e, env.slot, env.userID, body)
	assert.NoError(t, h.AssignChild(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec = httptest.NewRecorder()
	c = env.e.NewContext(req, rec)
	c.SetPath("/v1/schedule-slots/:id/assignments/:childId")
	c.SetParamNames("id", "childId")
	c.SetParamValues(fmt.Sprint(env.slot), fmt.Sprint(child))
	c.Set("user_id", float64(env.userID))

	assert.NoError(t, h.UnassignChild(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.store.Count(env.va))
}

func TestAvailableChildrenOK(t *testing.T) {
	env := newAssignTestEnv(4, nil)
	env.store.SeedChild(env.family, "Ada")
	env.store.SeedChild(env.family, "Ben")
	h := &AssignmentHandler{Assignments: env.svc}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	c.SetPath("/v1/schedule-slots/:id/available-children")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(env.slot))
	c.Set("user_id", float64(env.userID))

	assert.NoError(t, h.AvailableChildren(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var children []map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &children))
	assert.Len(t, children, 2)
}
