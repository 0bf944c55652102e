package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/org"
	testutil "github.com/unistock/stockroom/tests"
)

func Test_orgApi_departments(t *testing.T) {
	app := setup(t)
	admin, keeper, staff, _ := app.users(t)
	adminToken := getToken(t, app.conf, admin)
	cs := testutil.CreateDepartment(t, app.orgRepo, "Computer Science", "CS")

	app.run(t, []httpTest{
		{name: "auth required", path: "/v1/departments", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "staff reads", path: "/v1/departments/" + cs.ID, token: getToken(t, app.conf, staff), wantData: marshalObj(t, cs)},
		{
			name: "storekeeper cannot create", method: http.MethodPost, path: "/v1/departments", token: getToken(t, app.conf, keeper),
			body: []byte(`{"name": "Physics", "code": "PHY"}`), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "invalid", method: http.MethodPost, path: "/v1/departments", token: adminToken,
			body: []byte(`{"name": "   "}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "duplicate code", method: http.MethodPost, path: "/v1/departments", token: adminToken,
			body: []byte(`{"name": "Chemistry", "code": "cs"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"code": "a department with this code already exists"}`),
		},
		{name: "unknown", path: "/v1/departments/" + "00000000-0000-0000-0000-000000000000", token: adminToken, wantCode: http.StatusNotFound},
	})

	rec := app.do(http.MethodPost, "/v1/departments", adminToken, []byte(`{"name": " Physics ", "code": "phy", "description": "Lab building"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	phy := decode[org.Department](t, rec)
	assert.Equal(t, "Physics", phy.Name)
	assert.Equal(t, "PHY", phy.Code)

	rec = app.do(http.MethodPut, "/v1/departments/"+phy.ID, adminToken, []byte(`{"name": "Applied Physics"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	phy = decode[org.Department](t, rec)
	assert.Equal(t, "Applied Physics", phy.Name)
	assert.Equal(t, "PHY", phy.Code, "omitted fields are kept")
	assert.Equal(t, "Lab building", phy.Description)

	rec = app.do(http.MethodGet, "/v1/departments?search=phy&ordering=name", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[core.Page[org.Department]](t, rec)
	require.Equal(t, 1, page.Count)
	assert.Equal(t, phy.ID, page.Results[0].ID)

	rec = app.do(http.MethodDelete, "/v1/departments/"+phy.ID, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = app.do(http.MethodGet, "/v1/departments/"+phy.ID, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func Test_orgApi_offices(t *testing.T) {
	app := setup(t)
	admin, _, _, _ := app.users(t)
	adminToken := getToken(t, app.conf, admin)
	cs := testutil.CreateDepartment(t, app.orgRepo, "Computer Science", "CS")
	math := testutil.CreateDepartment(t, app.orgRepo, "Mathematics", "MATH")
	lab := testutil.CreateOffice(t, app.orgRepo, cs.ID, "Lab 1")

	app.run(t, []httpTest{
		{
			name: "unknown department", method: http.MethodPost, path: "/v1/offices", token: adminToken,
			body:     marshalObj(t, org.NewOffice{DepartmentID: "00000000-0000-0000-0000-000000000000", Name: "Room 2"}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"department_id": "department not found"}`),
		},
		{
			name: "department in use", method: http.MethodDelete, path: "/v1/departments/" + cs.ID, token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "department still has offices or stock movements"}),
		},
	})

	rec := app.do(http.MethodPost, "/v1/offices", adminToken, marshalObj(t, org.NewOffice{DepartmentID: math.ID, Name: "Room 2", Location: "Block B"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	room := decode[org.Office](t, rec)
	assert.Equal(t, "Mathematics", room.DepartmentName)

	rec = app.do(http.MethodGet, "/v1/offices?department_id="+cs.ID, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[core.Page[org.Office]](t, rec)
	require.Equal(t, 1, page.Count)
	assert.Equal(t, lab.ID, page.Results[0].ID)

	rec = app.do(http.MethodPut, "/v1/offices/"+room.ID, adminToken, marshalObj(t, map[string]string{"department_id": cs.ID}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	room = decode[org.Office](t, rec)
	assert.Equal(t, cs.ID, room.DepartmentID)
	assert.Equal(t, "Room 2", room.Name)
	assert.Equal(t, "Block B", room.Location)
}
