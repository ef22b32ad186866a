package directory

import "time"

// Organization is a tenant. Slug is the stable URL identifier and must
// never change once routes reference it; PlatformName and LogoURL are
// nullable branding overrides layered onto the platform default brand.
type Organization struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid"`
	Slug         string     `json:"slug" gorm:"size:100;uniqueIndex;not null"`
	Name         string     `json:"name" gorm:"size:255;not null"`
	PlatformName *string    `json:"platformName" gorm:"size:255"`
	LogoURL      *string    `json:"logoUrl" gorm:"type:text"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// OrganizationDomain maps a custom hostname to exactly one organization.
// Hostnames are stored lowercase; uniqueness across the whole directory
// is enforced by the index.
type OrganizationDomain struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	OrganizationID string    `json:"organizationId" gorm:"type:uuid;not null;index"`
	Domain         string    `json:"domain" gorm:"size:255;uniqueIndex;not null"`
	CreatedAt      time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
}

// User is a platform-wide account. IsSuperAdmin is the global operator
// flag, orthogonal to any per-organization role.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid"`
	Email        string     `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Name         string     `json:"name" gorm:"size:255;not null"`
	AvatarURL    *string    `json:"avatarUrl" gorm:"type:text"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	IsSuperAdmin bool       `json:"isSuperAdmin" gorm:"not null;default:false"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	LastActiveAt *time.Time `json:"lastActiveAt"`
}

// Membership joins a User to an Organization with exactly one role and
// one status. At most one row exists per (user, organization) pair.
// Suspension is a status transition; rows are never hard-deleted while
// referenced.
type Membership struct {
	ID             string           `json:"id" gorm:"primaryKey;type:uuid"`
	UserID         string           `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_org"`
	OrganizationID string           `json:"organizationId" gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_org"`
	Role           Role             `json:"role" gorm:"size:50;not null"`
	Status         MembershipStatus `json:"status" gorm:"size:50;not null;default:active"`
	CreatedAt      time.Time        `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt      time.Time        `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// Course belongs to an organization and is taught by one of its
// teachers. The tenancy layer only reads these rows (deletion guard,
// dashboard counts); course CRUD lives elsewhere.
type Course struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	OrganizationID string    `json:"organizationId" gorm:"type:uuid;not null;index"`
	Title          string    `json:"title" gorm:"size:255;not null"`
	TeacherID      string    `json:"teacherId" gorm:"type:uuid;index"`
	CreatedAt      time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
}

// Enrollment joins a student to a course.
type Enrollment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CourseID  string    `json:"courseId" gorm:"type:uuid;not null;uniqueIndex:idx_enrollments_course_user"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_enrollments_course_user"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
}

// Branding is the public branding view of an organization returned by
// the branding endpoint and cached by the org context provider.
type Branding struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PlatformName *string `json:"platformName"`
	LogoURL      *string `json:"logoUrl"`
}

// BrandingOf projects an organization onto its branding view.
func BrandingOf(org *Organization) *Branding {
	return &Branding{
		ID:           org.ID,
		Name:         org.Name,
		PlatformName: org.PlatformName,
		LogoURL:      org.LogoURL,
	}
}

// AllModels lists every directory model for migration.
func AllModels() []any {
	return []any{
		&Organization{},
		&OrganizationDomain{},
		&User{},
		&Membership{},
		&Course{},
		&Enrollment{},
	}
}
