package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("directory: not found")
	// ErrConflict is returned when a uniqueness constraint would be
	// violated (duplicate slug, domain, or email). State is unchanged.
	ErrConflict = errors.New("directory: already exists")
	// ErrOrgNotEmpty is returned when deleting an organization that is
	// still referenced by memberships or courses.
	ErrOrgNotEmpty = errors.New("directory: organization still referenced")
	// ErrInvalidInput is returned for malformed slugs, hostnames, roles,
	// or statuses.
	ErrInvalidInput = errors.New("directory: invalid input")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// reservedSlugs are path segments the request gate owns; an organization
// may never claim them.
var reservedSlugs = map[string]struct{}{
	"admin": {}, "teacher": {}, "student": {}, "superadmin": {}, "login": {},
	"api": {}, "static": {}, "assets": {}, "www": {},
}

// Service is the tenant directory: lookup and mutation of organizations,
// their custom domains, users, and memberships. Uniqueness of slug,
// domain, email, and the (user, organization) pair is delegated to
// database constraints and surfaced as ErrConflict.
type Service interface {
	CreateOrganization(ctx context.Context, slug, name string) (*Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	GetOrganizationByID(ctx context.Context, id string) (*Organization, error)
	ListOrganizations(ctx context.Context, limit, offset int) ([]*Organization, int64, error)
	DeleteOrganization(ctx context.Context, id string) error

	AddDomain(ctx context.Context, orgID, host string) (*OrganizationDomain, error)
	RemoveDomain(ctx context.Context, orgID, host string) error
	ResolveDomain(ctx context.Context, host string) (string, error)

	Branding(ctx context.Context, slug string) (*Branding, error)
	UpdateBranding(ctx context.Context, slug string, patch BrandingPatch) (*Branding, error)

	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	TouchLastActive(ctx context.Context, userID string) error

	UpsertMembership(ctx context.Context, orgID, userID string, role Role, status MembershipStatus) (*Membership, error)
	SuspendMembership(ctx context.Context, orgID, userID string) (*Membership, error)
	FindMembership(ctx context.Context, orgID, userID string) (*Membership, error)
	ListMembers(ctx context.Context, orgID string, limit, offset int) ([]*Membership, int64, error)

	OrgStats(ctx context.Context, orgID string) (*OrgStats, error)
	CoursesByTeacher(ctx context.Context, orgID, teacherID string) ([]*Course, error)
	CoursesForStudent(ctx context.Context, orgID, studentID string) ([]*Course, error)
}

// CreateUserParams describes a new platform user.
type CreateUserParams struct {
	Email        string
	Name         string
	PasswordHash string
	IsSuperAdmin bool
}

// OrgStats summarizes an organization for the admin dashboard.
type OrgStats struct {
	Members     int64 `json:"members"`
	Courses     int64 `json:"courses"`
	Enrollments int64 `json:"enrollments"`
}

type service struct {
	db *gorm.DB
}

// NewService constructs the directory service over the given DB.
func NewService(db *gorm.DB) Service {
	return &service{db: db}
}

// NormalizeHost lowercases a host header and strips any port.
func NormalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return ""
	}
	if stripped, _, err := net.SplitHostPort(h); err == nil {
		h = stripped
	}
	return strings.TrimSuffix(h, ".")
}

// ValidateSlug checks slug shape and reserved names.
func ValidateSlug(slug string) error {
	if len(slug) < 2 || len(slug) > 63 || !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: slug %q", ErrInvalidInput, slug)
	}
	if _, reserved := reservedSlugs[slug]; reserved {
		return fmt.Errorf("%w: slug %q is reserved", ErrInvalidInput, slug)
	}
	return nil
}

func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique")
}

func (s *service) CreateOrganization(ctx context.Context, slug, name string) (*Organization, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}

	org := &Organization{
		ID:   uuid.New().String(),
		Slug: slug,
		Name: strings.TrimSpace(name),
	}
	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, fmt.Errorf("%w: slug %q", ErrConflict, slug)
		}
		return nil, err
	}
	return org, nil
}

func (s *service) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	var org Organization
	err := s.db.WithContext(ctx).Where("slug = ?", strings.ToLower(slug)).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *service) GetOrganizationByID(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *service) ListOrganizations(ctx context.Context, limit, offset int) ([]*Organization, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Organization{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orgs []*Organization
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orgs).Error
	if err != nil {
		return nil, 0, err
	}
	return orgs, total, nil
}

// DeleteOrganization removes an organization and its domains. The delete
// is blocked while any membership or course still references the org.
func (s *service) DeleteOrganization(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org Organization
		if err := tx.Where("id = ?", id).First(&org).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var members int64
		if err := tx.Model(&Membership{}).Where("organization_id = ?", id).Count(&members).Error; err != nil {
			return err
		}
		var courses int64
		if err := tx.Model(&Course{}).Where("organization_id = ?", id).Count(&courses).Error; err != nil {
			return err
		}
		if members > 0 || courses > 0 {
			return fmt.Errorf("%w: %d members, %d courses", ErrOrgNotEmpty, members, courses)
		}

		if err := tx.Where("organization_id = ?", id).Delete(&OrganizationDomain{}).Error; err != nil {
			return err
		}
		return tx.Delete(&org).Error
	})
}

func (s *service) AddDomain(ctx context.Context, orgID, host string) (*OrganizationDomain, error) {
	domain := NormalizeHost(host)
	if domain == "" || !strings.Contains(domain, ".") {
		return nil, fmt.Errorf("%w: hostname %q", ErrInvalidInput, host)
	}

	if _, err := s.GetOrganizationByID(ctx, orgID); err != nil {
		return nil, err
	}

	record := &OrganizationDomain{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Domain:         domain,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, fmt.Errorf("%w: domain %q", ErrConflict, domain)
		}
		return nil, err
	}
	return record, nil
}

func (s *service) RemoveDomain(ctx context.Context, orgID, host string) error {
	domain := NormalizeHost(host)
	result := s.db.WithContext(ctx).
		Where("organization_id = ? AND domain = ?", orgID, domain).
		Delete(&OrganizationDomain{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveDomain returns the slug of the organization owning the exact
// custom hostname, or ErrNotFound.
func (s *service) ResolveDomain(ctx context.Context, host string) (string, error) {
	domain := NormalizeHost(host)
	if domain == "" {
		return "", ErrNotFound
	}

	var slug string
	err := s.db.WithContext(ctx).
		Model(&OrganizationDomain{}).
		Select("organizations.slug").
		Joins("JOIN organizations ON organizations.id = organization_domains.organization_id").
		Where("organization_domains.domain = ?", domain).
		Scan(&slug).Error
	if err != nil {
		return "", err
	}
	if slug == "" {
		return "", ErrNotFound
	}
	return slug, nil
}

func (s *service) Branding(ctx context.Context, slug string) (*Branding, error) {
	org, err := s.GetOrganizationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return BrandingOf(org), nil
}

// UpdateBranding applies a tri-state patch: fields absent from the
// request body are left unchanged, explicit nulls clear the override,
// values replace it. Applying the same patch twice yields the same
// state and response.
func (s *service) UpdateBranding(ctx context.Context, slug string, patch BrandingPatch) (*Branding, error) {
	org, err := s.GetOrganizationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.PlatformName.Present {
		if err := patch.PlatformName.Validate(MaxPlatformNameLen); err != nil {
			return nil, err
		}
		org.PlatformName = patch.PlatformName.Value
		updates["platform_name"] = patch.PlatformName.Value
	}
	if patch.LogoURL.Present {
		if err := patch.LogoURL.Validate(MaxLogoURLLen); err != nil {
			return nil, err
		}
		org.LogoURL = patch.LogoURL.Value
		updates["logo_url"] = patch.LogoURL.Value
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&Organization{}).Where("id = ?", org.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return BrandingOf(org), nil
}

func (s *service) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidInput, params.Email)
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}

	user := &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(params.Name),
		PasswordHash: params.PasswordHash,
		IsSuperAdmin: params.IsSuperAdmin,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, fmt.Errorf("%w: email %q", ErrConflict, email)
		}
		return nil, err
	}
	return user, nil
}

func (s *service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *service) GetUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *service) TouchLastActive(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("last_active_at", now).Error
}

// UpsertMembership creates or updates the single membership row for the
// (user, organization) pair.
func (s *service) UpsertMembership(ctx context.Context, orgID, userID string, role Role, status MembershipStatus) (*Membership, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidInput, role)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	if _, err := s.GetOrganizationByID(ctx, orgID); err != nil {
		return nil, err
	}
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	var m Membership
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&m).Error
	switch {
	case err == nil:
		m.Role = role
		m.Status = status
		if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
			return nil, err
		}
		return &m, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		m = Membership{
			ID:             uuid.New().String(),
			UserID:         userID,
			OrganizationID: orgID,
			Role:           role,
			Status:         status,
		}
		if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
			if isDuplicateErr(err) {
				// Lost the race to a concurrent upsert; the constraint
				// guarantees a single row either way.
				return nil, ErrConflict
			}
			return nil, err
		}
		return &m, nil
	default:
		return nil, err
	}
}

// SuspendMembership soft-deletes a membership by status transition. The
// row is retained.
func (s *service) SuspendMembership(ctx context.Context, orgID, userID string) (*Membership, error) {
	m, err := s.FindMembership(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	m.Status = StatusSuspended
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func (s *service) FindMembership(ctx context.Context, orgID, userID string) (*Membership, error) {
	var m Membership
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *service) ListMembers(ctx context.Context, orgID string, limit, offset int) ([]*Membership, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Membership{}).Where("organization_id = ?", orgID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var members []*Membership
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Find(&members).Error
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (s *service) OrgStats(ctx context.Context, orgID string) (*OrgStats, error) {
	var stats OrgStats
	db := s.db.WithContext(ctx)
	if err := db.Model(&Membership{}).Where("organization_id = ? AND status = ?", orgID, StatusActive).Count(&stats.Members).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Course{}).Where("organization_id = ?", orgID).Count(&stats.Courses).Error; err != nil {
		return nil, err
	}
	err := db.Model(&Enrollment{}).
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Where("courses.organization_id = ?", orgID).
		Count(&stats.Enrollments).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *service) CoursesByTeacher(ctx context.Context, orgID, teacherID string) ([]*Course, error) {
	var courses []*Course
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND teacher_id = ?", orgID, teacherID).
		Order("created_at DESC").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (s *service) CoursesForStudent(ctx context.Context, orgID, studentID string) ([]*Course, error) {
	var courses []*Course
	err := s.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("courses.organization_id = ? AND enrollments.user_id = ?", orgID, studentID).
		Order("courses.created_at DESC").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}
