package directory

import (
	"encoding/json"
	"fmt"
)

// OptionalString distinguishes three JSON states for a patch field:
// absent (Present=false, leave unchanged), null (Present=true, Value=nil,
// clear), and a string value (Present=true, set).
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON is only invoked for fields present in the body, so
// Present flips true for both nulls and values.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// Validate bounds the value length when one is set.
func (o OptionalString) Validate(maxLen int) error {
	if o.Value != nil && len(*o.Value) > maxLen {
		return fmt.Errorf("%w: value exceeds %d characters", ErrInvalidInput, maxLen)
	}
	return nil
}

// Field limits, matching the column sizes on Organization.
const (
	MaxPlatformNameLen = 255
	MaxLogoURLLen      = 2048
)

// BrandingPatch is the PATCH body for the branding endpoint.
type BrandingPatch struct {
	PlatformName OptionalString `json:"platformName"`
	LogoURL      OptionalString `json:"logoUrl"`
}

// Validate bounds both fields.
func (p BrandingPatch) Validate() error {
	if err := p.PlatformName.Validate(MaxPlatformNameLen); err != nil {
		return fmt.Errorf("platformName: %w", err)
	}
	if err := p.LogoURL.Validate(MaxLogoURLLen); err != nil {
		return fmt.Errorf("logoUrl: %w", err)
	}
	return nil
}
