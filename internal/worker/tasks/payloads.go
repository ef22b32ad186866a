package tasks

// Task Types
const (
	TypeMembershipInvite = "membership:invite"
)

// MembershipInvitePayload carries everything the mail handler needs so
// it never has to re-read the membership row.
type MembershipInvitePayload struct {
	Email        string `json:"email"`
	OrgSlug      string `json:"org_slug"`
	OrgName      string `json:"org_name"`
	PlatformName string `json:"platform_name"`
	Role         string `json:"role"`
}
