package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDBSeq int

func setupDirectoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:directory_service_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(AllModels()...))
	return db
}

func mustCreateOrg(t *testing.T, svc Service, slug, name string) *Organization {
	t.Helper()
	org, err := svc.CreateOrganization(context.Background(), slug, name)
	require.NoError(t, err)
	return org
}

func mustCreateUser(t *testing.T, svc Service, email string) *User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), CreateUserParams{
		Email: email, Name: "Test User", PasswordHash: "x",
	})
	require.NoError(t, err)
	return user
}

func TestCreateOrganization(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupDirectoryTestDB(t))

	org, err := svc.CreateOrganization(ctx, "Acme", "Acme Academy")
	require.NoError(t, err)
	assert.Equal(t, "acme", org.Slug)
	assert.NotEmpty(t, org.ID)

	// Duplicate slug.
	_, err = svc.CreateOrganization(ctx, "acme", "Other")
	assert.ErrorIs(t, err, ErrConflict)

	// Reserved and malformed slugs.
	for _, slug := range []string{"admin", "login", "api", "x", "has space", "-dash", "trail-"} {
		_, err = svc.CreateOrganization(ctx, slug, "Bad")
		assert.ErrorIs(t, err, ErrInvalidInput, slug)
	}

	// Lookup is case-insensitive on input.
	got, err := svc.GetOrganizationBySlug(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	_, err = svc.GetOrganizationBySlug(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDomains(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupDirectoryTestDB(t))
	acme := mustCreateOrg(t, svc, "acme", "Acme Academy")
	umbrella := mustCreateOrg(t, svc, "umbrella", "Umbrella College")

	_, err := svc.AddDomain(ctx, acme.ID, "Learn.Acme.EDU:443")
	require.NoError(t, err)

	// Hostnames are normalized before matching.
	slug, err := svc.ResolveDomain(ctx, "learn.acme.edu")
	require.NoError(t, err)
	assert.Equal(t, "acme", slug)

	slug, err = svc.ResolveDomain(ctx, "LEARN.ACME.EDU:8443")
	require.NoError(t, err)
	assert.Equal(t, "acme", slug)

	// A hostname belongs to at most one organization.
	_, err = svc.AddDomain(ctx, umbrella.ID, "learn.acme.edu")
	assert.ErrorIs(t, err, ErrConflict)

	// Unknown org and bad hostnames.
	_, err = svc.AddDomain(ctx, "no-such-org", "a.example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.AddDomain(ctx, acme.ID, "not-a-domain")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ResolveDomain(ctx, "unknown.example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.RemoveDomain(ctx, acme.ID, "learn.acme.edu"))
	_, err = svc.ResolveDomain(ctx, "learn.acme.edu")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.RemoveDomain(ctx, acme.ID, "learn.acme.edu"), ErrNotFound)
}

func TestDeleteOrganizationGuard(t *testing.T) {
	ctx := context.Background()
	db := setupDirectoryTestDB(t)
	svc := NewService(db)
	org := mustCreateOrg(t, svc, "acme", "Acme Academy")
	user := mustCreateUser(t, svc, "member@acme.test")

	_, err := svc.AddDomain(ctx, org.ID, "learn.acme.edu")
	require.NoError(t, err)
	_, err = svc.UpsertMembership(ctx, org.ID, user.ID, RoleStudent, StatusActive)
	require.NoError(t, err)

	// Blocked while a membership exists; nothing is deleted.
	err = svc.DeleteOrganization(ctx, org.ID)
	assert.ErrorIs(t, err, ErrOrgNotEmpty)
	_, err = svc.GetOrganizationByID(ctx, org.ID)
	require.NoError(t, err)
	slug, err := svc.ResolveDomain(ctx, "learn.acme.edu")
	require.NoError(t, err)
	assert.Equal(t, "acme", slug)

	// Drop the membership row entirely, then a course still blocks.
	require.NoError(t, db.Where("organization_id = ?", org.ID).Delete(&Membership{}).Error)
	course := &Course{ID: "c-1", OrganizationID: org.ID, Title: "Algebra"}
	require.NoError(t, db.Create(course).Error)
	assert.ErrorIs(t, svc.DeleteOrganization(ctx, org.ID), ErrOrgNotEmpty)
	require.NoError(t, db.Delete(course).Error)

	// Empty org deletes, cascading its domains.
	require.NoError(t, svc.DeleteOrganization(ctx, org.ID))
	_, err = svc.GetOrganizationByID(ctx, org.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ResolveDomain(ctx, "learn.acme.edu")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.DeleteOrganization(ctx, org.ID), ErrNotFound)
}

func TestUpdateBrandingTriState(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupDirectoryTestDB(t))
	mustCreateOrg(t, svc, "acme", "Acme Academy")

	patchOf := func(t *testing.T, body string) BrandingPatch {
		t.Helper()
		var p BrandingPatch
		require.NoError(t, json.Unmarshal([]byte(body), &p))
		return p
	}

	// Set one field, leave the other absent.
	b, err := svc.UpdateBranding(ctx, "acme", patchOf(t, `{"platformName":"Acme Learning"}`))
	require.NoError(t, err)
	require.NotNil(t, b.PlatformName)
	assert.Equal(t, "Acme Learning", *b.PlatformName)
	assert.Nil(t, b.LogoURL)

	// Absent field stays untouched when the other changes.
	b, err = svc.UpdateBranding(ctx, "acme", patchOf(t, `{"logoUrl":"https://cdn.acme.test/logo.png"}`))
	require.NoError(t, err)
	require.NotNil(t, b.PlatformName)
	assert.Equal(t, "Acme Learning", *b.PlatformName)
	require.NotNil(t, b.LogoURL)
	assert.Equal(t, "https://cdn.acme.test/logo.png", *b.LogoURL)

	// Explicit null clears.
	b, err = svc.UpdateBranding(ctx, "acme", patchOf(t, `{"platformName":null}`))
	require.NoError(t, err)
	assert.Nil(t, b.PlatformName)
	require.NotNil(t, b.LogoURL)

	// Applying the same patch twice yields identical state.
	patch := patchOf(t, `{"platformName":"Final","logoUrl":null}`)
	first, err := svc.UpdateBranding(ctx, "acme", patch)
	require.NoError(t, err)
	second, err := svc.UpdateBranding(ctx, "acme", patch)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	fromRead, err := svc.Branding(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, second, fromRead)

	_, err = svc.UpdateBranding(ctx, "ghost", patch)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBrandingFieldLimits(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupDirectoryTestDB(t))
	mustCreateOrg(t, svc, "acme", "Acme Academy")

	atLimit := strings.Repeat("n", MaxPlatformNameLen)
	overLimit := atLimit + "n"

	patchWith := func(name string) BrandingPatch {
		return BrandingPatch{PlatformName: OptionalString{Present: true, Value: &name}}
	}

	// The request-level and service-level checks agree on the boundary.
	require.NoError(t, patchWith(atLimit).Validate())
	_, err := svc.UpdateBranding(ctx, "acme", patchWith(atLimit))
	require.NoError(t, err)

	assert.ErrorIs(t, patchWith(overLimit).Validate(), ErrInvalidInput)
	_, err = svc.UpdateBranding(ctx, "acme", patchWith(overLimit))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupDirectoryTestDB(t))

	user, err := svc.CreateUser(ctx, CreateUserParams{
		Email: "  Alice@Example.COM ", Name: "Alice", PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	// Email is globally unique, case-insensitively.
	_, err = svc.CreateUser(ctx, CreateUserParams{Email: "ALICE@example.com", Name: "Other"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateUser(ctx, CreateUserParams{Email: "not-an-email", Name: "Bad"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := svc.GetUserByEmail(ctx, "alice@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	require.NoError(t, svc.TouchLastActive(ctx, user.ID))
	got, err = svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastActiveAt)
}

func TestUpsertMembership(t *testing.T) {
	ctx := context.Background()
	db := setupDirectoryTestDB(t)
	svc := NewService(db)
	org := mustCreateOrg(t, svc, "acme", "Acme Academy")
	user := mustCreateUser(t, svc, "bob@acme.test")

	m1, err := svc.UpsertMembership(ctx, org.ID, user.ID, RoleStudent, StatusInvited)
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, m1.Role)
	assert.Equal(t, StatusInvited, m1.Status)

	// Re-assignment replaces the single row instead of adding one.
	m2, err := svc.UpsertMembership(ctx, org.ID, user.ID, RoleTeacher, StatusActive)
	require.NoError(t, err)
	assert.Equal(t, m1.ID, m2.ID)
	assert.Equal(t, RoleTeacher, m2.Role)

	var count int64
	require.NoError(t, db.Model(&Membership{}).Where("organization_id = ? AND user_id = ?", org.ID, user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// Suspension keeps the row.
	suspended, err := svc.SuspendMembership(ctx, org.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, suspended.Status)
	found, err := svc.FindMembership(ctx, org.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, found.Status)
	assert.Equal(t, RoleTeacher, found.Role)

	// Reactivation goes through the same upsert.
	again, err := svc.UpsertMembership(ctx, org.ID, user.ID, RoleTeacher, StatusActive)
	require.NoError(t, err)
	assert.Equal(t, m1.ID, again.ID)
	assert.Equal(t, StatusActive, again.Status)

	// Validation.
	_, err = svc.UpsertMembership(ctx, org.ID, user.ID, Role("owner"), StatusActive)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UpsertMembership(ctx, org.ID, user.ID, RoleAdmin, MembershipStatus("deleted"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UpsertMembership(ctx, "no-org", user.ID, RoleAdmin, StatusActive)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.SuspendMembership(ctx, org.ID, "no-user")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrgStatsAndCourses(t *testing.T) {
	ctx := context.Background()
	db := setupDirectoryTestDB(t)
	svc := NewService(db)
	org := mustCreateOrg(t, svc, "acme", "Acme Academy")
	teacher := mustCreateUser(t, svc, "teacher@acme.test")
	student := mustCreateUser(t, svc, "student@acme.test")
	suspended := mustCreateUser(t, svc, "gone@acme.test")

	_, err := svc.UpsertMembership(ctx, org.ID, teacher.ID, RoleTeacher, StatusActive)
	require.NoError(t, err)
	_, err = svc.UpsertMembership(ctx, org.ID, student.ID, RoleStudent, StatusActive)
	require.NoError(t, err)
	_, err = svc.UpsertMembership(ctx, org.ID, suspended.ID, RoleStudent, StatusSuspended)
	require.NoError(t, err)

	courses := []*Course{
		{ID: "c-1", OrganizationID: org.ID, Title: "Algebra", TeacherID: teacher.ID},
		{ID: "c-2", OrganizationID: org.ID, Title: "Biology", TeacherID: teacher.ID},
		{ID: "c-3", OrganizationID: org.ID, Title: "Chemistry", TeacherID: "someone-else"},
	}
	for _, c := range courses {
		require.NoError(t, db.Create(c).Error)
	}
	require.NoError(t, db.Create(&Enrollment{ID: "e-1", CourseID: "c-1", UserID: student.ID}).Error)
	require.NoError(t, db.Create(&Enrollment{ID: "e-2", CourseID: "c-2", UserID: student.ID}).Error)

	stats, err := svc.OrgStats(ctx, org.ID)
	require.NoError(t, err)
	// Suspended members do not count.
	assert.EqualValues(t, 2, stats.Members)
	assert.EqualValues(t, 3, stats.Courses)
	assert.EqualValues(t, 2, stats.Enrollments)

	taught, err := svc.CoursesByTeacher(ctx, org.ID, teacher.ID)
	require.NoError(t, err)
	assert.Len(t, taught, 2)

	enrolled, err := svc.CoursesForStudent(ctx, org.ID, student.ID)
	require.NoError(t, err)
	assert.Len(t, enrolled, 2)

	none, err := svc.CoursesForStudent(ctx, org.ID, teacher.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListMembersAndOrganizations(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupDirectoryTestDB(t))
	org := mustCreateOrg(t, svc, "acme", "Acme Academy")
	mustCreateOrg(t, svc, "umbrella", "Umbrella College")

	for i := 0; i < 3; i++ {
		u := mustCreateUser(t, svc, fmt.Sprintf("user%d@acme.test", i))
		_, err := svc.UpsertMembership(ctx, org.ID, u.ID, RoleStudent, StatusActive)
		require.NoError(t, err)
	}

	orgs, total, err := svc.ListOrganizations(ctx, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, orgs, 2)

	members, total, err := svc.ListMembers(ctx, org.ID, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, members, 2)
}

func TestNormalizeHost(t *testing.T) {
	cases := map[string]string{
		"Learn.Acme.EDU":      "learn.acme.edu",
		"learn.acme.edu:8080": "learn.acme.edu",
		" acme.test. ":        "acme.test",
		"":                    "",
		"localhost:3000":      "localhost",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeHost(in), in)
	}
}
