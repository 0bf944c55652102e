package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/unistock/stockroom/apps/api/echo"
	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/user"
	testutil "github.com/unistock/stockroom/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	pwd := "Sup3r-S3cret!pwd"
	testutil.CreateUser(t, app.usrRepo, "Jane", "jane01", "jane@test.cd", pwd, []string{user.RoleStorekeeper}, true)
	testutil.CreateUser(t, app.usrRepo, "Jack", "jack01", "jack@test.cd", pwd, nil, false)

	login := func(uname, pwd string) []byte {
		return marshalObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	app.run(t, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username": "this field is required", "password": "this field is required"}`),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login", body: login("nobody", pwd),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: login("jane01", "nope"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/login", body: login("jack@test.cd", pwd),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/users/login", "", login("jane@test.cd", pwd))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		res := decode[echoapi.LoginResponse](t, rec)
		require.NotEmpty(t, res.Token)

		// the token gives access to the storekeeper's resources
		rec = app.do(http.MethodGet, "/v1/stock-ins", res.Token)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = app.do(http.MethodPost, "/v1/users/token-refresh", res.Token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, decode[echoapi.LoginResponse](t, rec).Token)
	})
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)
	admin, keeper, staff, inactive := app.users(t)
	adminToken := getToken(t, app.conf, admin)

	app.run(t, []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: getToken(t, app.conf, keeper),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown ordering", path: "/v1/users?ordering=password", token: adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "bad is_active", path: "/v1/users?is_active=maybe", token: adminToken,
			wantCode: http.StatusBadRequest,
		},
	})

	query := func(t *testing.T, path string) core.Page[user.User] {
		rec := app.do(http.MethodGet, path, adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[core.Page[user.User]](t, rec)
	}
	ids := func(users []user.User) []string {
		res := make([]string, 0, len(users))
		for _, usr := range users {
			res = append(res, usr.ID)
		}
		return res
	}

	t.Run("all", func(t *testing.T) {
		page := query(t, "/v1/users?ordering=name")
		assert.Equal(t, 4, page.Count)
		assert.Equal(t, []string{admin.ID, inactive.ID, staff.ID, keeper.ID}, ids(page.Results))
	})
	t.Run("paginated", func(t *testing.T) {
		page := query(t, "/v1/users?ordering=name&page=2&page_size=3")
		assert.Equal(t, 4, page.Count)
		assert.Equal(t, []string{keeper.ID}, ids(page.Results))
	})
	t.Run("role", func(t *testing.T) {
		page := query(t, "/v1/users?role=staff:")
		assert.ElementsMatch(t, []string{staff.ID, inactive.ID}, ids(page.Results))
	})
	t.Run("is_active", func(t *testing.T) {
		page := query(t, "/v1/users?role=staff:&is_active=true")
		assert.Equal(t, []string{staff.ID}, ids(page.Results))
	})
	t.Run("search", func(t *testing.T) {
		page := query(t, "/v1/users?search=KEEP")
		assert.Equal(t, []string{keeper.ID}, ids(page.Results))
	})
}

func Test_userApi_retrieveAndDelete(t *testing.T) {
	app := setup(t)
	admin, keeper, staff, _ := app.users(t)
	owner := testutil.CreateUser(t, app.usrRepo, "Owner", "owner1", "owner@test.cd", "", []string{user.RoleAdminOwner}, true)
	adminToken := getToken(t, app.conf, admin)
	staffToken := getToken(t, app.conf, staff)

	app.run(t, []httpTest{
		{name: "self", path: "/v1/users/" + staff.ID, token: staffToken, wantData: marshalObj(t, staff)},
		{name: "other user", path: "/v1/users/" + keeper.ID, token: staffToken, wantCode: http.StatusNotFound},
		{name: "admin reads anyone", path: "/v1/users/" + keeper.ID, token: adminToken, wantData: marshalObj(t, keeper)},
		{name: "unknown", path: "/v1/users/unknown", token: adminToken, wantCode: http.StatusNotFound},
		{name: "delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "delete higher role", method: http.MethodDelete, path: "/v1/users/" + owner.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "staff cannot delete", method: http.MethodDelete, path: "/v1/users/" + staff.ID, token: staffToken, wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: "/v1/users/" + keeper.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/v1/users/" + keeper.ID, token: adminToken, wantCode: http.StatusNotFound},
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	_, keeper, _, inactive := app.users(t)
	success := []byte(`{"success": "If the email address supplied is associated with an active account on this system, ` +
		`an email will arrive in your inbox shortly with instructions to reset your password."}`)

	app.run(t, []httpTest{
		{name: "unknown email", method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email": "who@test.cd"}`), wantData: success},
		{name: "inactive user", method: http.MethodPost, path: "/v1/users/password-reset", body: marshalObj(t, map[string]string{"email": inactive.Email}), wantData: success},
	})
	assert.Empty(t, app.mailSvc.SentMessages())

	rec := app.do(http.MethodPost, "/v1/users/password-reset", "", marshalObj(t, map[string]string{"email": keeper.Email}))
	checkCodeAndData(t, http.StatusOK, success, rec)

	sent := app.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, keeper.Email, sent[0].To[0].Address)
}

func Test_userApi_roles(t *testing.T) {
	app := setup(t)
	admin, _, staff, _ := app.users(t)

	app.run(t, []httpTest{
		{name: "admin", path: "/v1/users/roles", token: getToken(t, app.conf, admin), wantData: marshalObj(t, user.Roles)},
		{name: "staff", path: "/v1/users/roles", token: getToken(t, app.conf, staff), wantCode: http.StatusForbidden},
	})
}

func Test_userApi_createAndUpdate(t *testing.T) {
	app := setup(t)
	admin, keeper, staff, _ := app.users(t)
	adminToken := getToken(t, app.conf, admin)
	staffToken := getToken(t, app.conf, staff)
	pwd := "Sup3r-S3cret!pwd"
	newUser := func(uname, email, pwd string, roles ...string) []byte {
		return marshalObj(t, user.NewUser{Name: "New Clerk", Username: uname, Email: email, Password: pwd, PasswordConfirm: pwd, Roles: roles})
	}

	app.run(t, []httpTest{
		{
			name: "admin required", method: http.MethodPost, path: "/v1/users/register", token: getToken(t, app.conf, keeper),
			body: newUser("clerk01", "", pwd), wantCode: http.StatusForbidden,
		},
		{
			name: "no username nor email", method: http.MethodPost, path: "/v1/users/register", token: adminToken,
			body: newUser("", "", pwd), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username": "one of username or email is required", "email": "one of username or email is required"}`),
		},
		{
			name: "weak password", method: http.MethodPost, path: "/v1/users/register", token: adminToken,
			body: newUser("clerk01", "", "12345678"), wantCode: http.StatusBadRequest,
		},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/users/register", token: adminToken,
			body: newUser("clerk01", admin.Email, pwd), wantCode: http.StatusBadRequest,
		},
		{
			name: "role above own", method: http.MethodPost, path: "/v1/users/register", token: adminToken,
			body: newUser("clerk01", "", pwd, user.RoleAdminOwner), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"roles": "not enough rights to set these roles"}`),
		},
		{
			name: "staff cannot change own roles", method: http.MethodPut, path: "/v1/users/" + staff.ID, token: staffToken,
			body: []byte(`{"roles": ["admin:"]}`), wantCode: http.StatusForbidden,
		},
	})

	rec := app.do(http.MethodPost, "/v1/users/register", adminToken, newUser("Clerk01", "Clerk@Test.cd", pwd, user.RoleStorekeeper))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	clerk := decode[user.User](t, rec)
	assert.Equal(t, "clerk01", clerk.Username)
	assert.Equal(t, "clerk@test.cd", clerk.Email)
	assert.True(t, clerk.IsActive)

	t.Run("staff renames themselves", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/users/"+staff.ID, staffToken, []byte(`{"name": "Staff Member"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		usr := decode[user.User](t, rec)
		assert.Equal(t, "Staff Member", usr.Name)
		assert.Equal(t, staff.Username, usr.Username)
	})
	t.Run("admin deactivates", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/users/"+clerk.ID, adminToken, []byte(`{"is_active": false}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.False(t, decode[user.User](t, rec).IsActive)

		rec = app.do(http.MethodPost, "/v1/users/login", "", marshalObj(t, echoapi.LoginRequest{Username: "clerk01", Password: pwd}))
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})
}
