package superadmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backend/internal/audit"
	"backend/internal/auth"
	"backend/internal/authz"
	"backend/internal/directory"
	"backend/internal/worker/tasks"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testCookie = "lms_session"

var superadminTestSeq int

type fakeQueue struct {
	invites []tasks.MembershipInvitePayload
}

func (f *fakeQueue) EnqueueMembershipInvite(p tasks.MembershipInvitePayload) error {
	f.invites = append(f.invites, p)
	return nil
}

func (f *fakeQueue) Close() error { return nil }

type superadminTestEnv struct {
	router   *gin.Engine
	dir      directory.Service
	sessions *auth.SessionService
	queue    *fakeQueue
}

func setupSuperadminTest(t *testing.T) *superadminTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	superadminTestSeq++
	dsn := fmt.Sprintf("file:superadmin_handler_%d?mode=memory&cache=shared", superadminTestSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(append(directory.AllModels(), &audit.Log{})...))

	dir := directory.NewService(db)
	sessions := auth.NewSessionService("test-secret", "lms-test", time.Hour, nil)
	guard := authz.NewGuard(dir, sessions, zap.NewNop())
	q := &fakeQueue{}
	recorder := audit.NewRecorder(db, zap.NewNop())
	handler := NewSuperAdminHandler(dir, auth.NewBcryptHasher(), q, recorder, "Classroom", zap.NewNop())

	router := gin.New()
	group := router.Group("/api/superadmin")
	group.Use(authz.RequireSuperAdmin(guard, testCookie))
	group.POST("/orgs", handler.CreateOrg)
	group.GET("/orgs", handler.ListOrgs)
	group.DELETE("/orgs/:id", handler.DeleteOrg)
	group.POST("/orgs/:id/domains", handler.AddDomain)
	group.DELETE("/orgs/:id/domains/:domain", handler.RemoveDomain)
	group.GET("/orgs/:id/members", handler.ListMembers)
	group.PUT("/orgs/:id/members", handler.UpsertMember)
	group.DELETE("/orgs/:id/members/:userId", handler.SuspendMember)
	group.POST("/users", handler.CreateUser)
	group.GET("/audit", handler.ListAudit)

	return &superadminTestEnv{router: router, dir: dir, sessions: sessions, queue: q}
}

func (e *superadminTestEnv) superCookie(t *testing.T) *http.Cookie {
	t.Helper()
	user, err := e.dir.CreateUser(context.Background(), directory.CreateUserParams{
		Email: "root@platform.test", Name: "Root", PasswordHash: "x", IsSuperAdmin: true,
	})
	require.NoError(t, err)
	token, err := e.sessions.Issue(user.ID, user.Email, true)
	require.NoError(t, err)
	return &http.Cookie{Name: testCookie, Value: token}
}

func (e *superadminTestEnv) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestSuperAdminAccessControl(t *testing.T) {
	env := setupSuperadminTest(t)

	// No cookie.
	rec := env.do(http.MethodGet, "/api/superadmin/orgs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authenticated but not a super-admin.
	user, err := env.dir.CreateUser(context.Background(), directory.CreateUserParams{
		Email: "mortal@example.com", Name: "Mortal", PasswordHash: "x",
	})
	require.NoError(t, err)
	token, err := env.sessions.Issue(user.ID, user.Email, false)
	require.NoError(t, err)
	rec = env.do(http.MethodGet, "/api/superadmin/orgs", "", &http.Cookie{Name: testCookie, Value: token})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrgLifecycle(t *testing.T) {
	env := setupSuperadminTest(t)
	super := env.superCookie(t)

	rec := env.do(http.MethodPost, "/api/superadmin/orgs", `{"slug":"acme","name":"Acme Academy"}`, super)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data directory.Organization `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	orgID := created.Data.ID

	// Duplicate slug.
	rec = env.do(http.MethodPost, "/api/superadmin/orgs", `{"slug":"acme","name":"Other"}`, super)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Reserved slug.
	rec = env.do(http.MethodPost, "/api/superadmin/orgs", `{"slug":"admin","name":"Nope"}`, super)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/superadmin/orgs", "", super)
	require.Equal(t, http.StatusOK, rec.Code)

	// Domains.
	rec = env.do(http.MethodPost, "/api/superadmin/orgs/"+orgID+"/domains", `{"domain":"learn.acme.edu"}`, super)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(http.MethodPost, "/api/superadmin/orgs/"+orgID+"/domains", `{"domain":"learn.acme.edu"}`, super)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Members block deletion.
	userRec := env.do(http.MethodPost, "/api/superadmin/users",
		`{"email":"alice@acme.test","name":"Alice","password":"longenough"}`, super)
	require.Equal(t, http.StatusCreated, userRec.Code)
	var newUser struct {
		Data directory.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(userRec.Body.Bytes(), &newUser))

	rec = env.do(http.MethodPut, "/api/superadmin/orgs/"+orgID+"/members",
		fmt.Sprintf(`{"userId":%q,"role":"teacher"}`, newUser.Data.ID), super)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodDelete, "/api/superadmin/orgs/"+orgID, "", super)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Suspend keeps the row, so deletion is still blocked.
	rec = env.do(http.MethodDelete, "/api/superadmin/orgs/"+orgID+"/members/"+newUser.Data.ID, "", super)
	require.Equal(t, http.StatusOK, rec.Code)
	var suspended struct {
		Data directory.Membership `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &suspended))
	assert.Equal(t, directory.StatusSuspended, suspended.Data.Status)

	rec = env.do(http.MethodDelete, "/api/superadmin/orgs/"+orgID, "", super)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertMemberValidation(t *testing.T) {
	env := setupSuperadminTest(t)
	super := env.superCookie(t)

	org, err := env.dir.CreateOrganization(context.Background(), "acme", "Acme Academy")
	require.NoError(t, err)
	user, err := env.dir.CreateUser(context.Background(), directory.CreateUserParams{
		Email: "bob@acme.test", Name: "Bob", PasswordHash: "x",
	})
	require.NoError(t, err)

	// Unknown role never round-trips into the directory.
	rec := env.do(http.MethodPut, "/api/superadmin/orgs/"+org.ID+"/members",
		fmt.Sprintf(`{"userId":%q,"role":"owner"}`, user.ID), super)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPut, "/api/superadmin/orgs/"+org.ID+"/members",
		fmt.Sprintf(`{"userId":%q,"role":"student","status":"bogus"}`, user.ID), super)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown user.
	rec = env.do(http.MethodPut, "/api/superadmin/orgs/"+org.ID+"/members",
		`{"userId":"no-such-user","role":"student"}`, super)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvitedMemberGetsMail(t *testing.T) {
	env := setupSuperadminTest(t)
	super := env.superCookie(t)

	org, err := env.dir.CreateOrganization(context.Background(), "acme", "Acme Academy")
	require.NoError(t, err)
	user, err := env.dir.CreateUser(context.Background(), directory.CreateUserParams{
		Email: "carol@acme.test", Name: "Carol", PasswordHash: "x",
	})
	require.NoError(t, err)

	rec := env.do(http.MethodPut, "/api/superadmin/orgs/"+org.ID+"/members",
		fmt.Sprintf(`{"userId":%q,"role":"student","status":"invited"}`, user.ID), super)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, env.queue.invites, 1)
	invite := env.queue.invites[0]
	assert.Equal(t, "carol@acme.test", invite.Email)
	assert.Equal(t, "acme", invite.OrgSlug)
	assert.Equal(t, "student", invite.Role)

	// Active assignment sends nothing.
	rec = env.do(http.MethodPut, "/api/superadmin/orgs/"+org.ID+"/members",
		fmt.Sprintf(`{"userId":%q,"role":"student","status":"active"}`, user.ID), super)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.queue.invites, 1)
}

func TestMutationsLeaveAuditTrail(t *testing.T) {
	env := setupSuperadminTest(t)
	super := env.superCookie(t)

	rec := env.do(http.MethodPost, "/api/superadmin/orgs", `{"slug":"acme","name":"Acme Academy"}`, super)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodGet, "/api/superadmin/audit?action=org.create", "", super)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Items []audit.Log `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Items, 1)
	assert.Equal(t, "org/acme", body.Data.Items[0].Resource)

	// Reads are not audited.
	rec = env.do(http.MethodGet, "/api/superadmin/audit", "", super)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Items, 1)
}

func TestCreateUserConflict(t *testing.T) {
	env := setupSuperadminTest(t)
	super := env.superCookie(t)

	rec := env.do(http.MethodPost, "/api/superadmin/users",
		`{"email":"dup@example.com","name":"One","password":"longenough"}`, super)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, "/api/superadmin/users",
		`{"email":"DUP@example.com","name":"Two","password":"longenough"}`, super)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
