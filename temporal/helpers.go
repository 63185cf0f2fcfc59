package temporal

import (
	"math"
	"time"

	"github.com/steeldragon666/abfi-platform-1-sub004/diff"
)

// DefaultExpiryThresholdDays is the lookahead window for IsExpiringSoon when
// the caller passes a non-positive threshold.
const DefaultExpiryThresholdDays = 30

// bookkeepingFields are version metadata that never count as entity changes.
var bookkeepingFields = []string{
	"id",
	"versionId",
	"entityId",
	"versionNumber",
	"validFrom",
	"validTo",
	"isCurrent",
	"supersededById",
	"versionReason",
	"changedBy",
	"createdAt",
	"updatedAt",
}

// Compare produces a field-level diff between two versions' attributes,
// excluding bookkeeping fields. Comparing a version against itself yields an
// empty diff.
func Compare(old, new *EntityVersion) []diff.FieldChange {
	var oldAttrs, newAttrs map[string]interface{}
	if old != nil {
		oldAttrs = old.Attributes
	}
	if new != nil {
		newAttrs = new.Attributes
	}
	return diff.FindChangesExcluding(oldAttrs, newAttrs, bookkeepingFields)
}

// IsEntityCurrent reports whether the version is present-day truth.
func IsEntityCurrent(v *EntityVersion) bool {
	return v != nil && v.ValidTo == nil
}

// WasValidAt reports whether the version was authoritative at the given
// instant. The validity interval is half-open: the upper bound is exclusive.
func WasValidAt(v *EntityVersion, at time.Time) bool {
	if v == nil || at.Before(v.ValidFrom) {
		return false
	}
	return v.ValidTo == nil || at.Before(*v.ValidTo)
}

// GetValidityPeriod returns the version's validity window, preserving a nil
// upper bound for current versions.
func GetValidityPeriod(v *EntityVersion) Period {
	return Period{From: v.ValidFrom, To: v.ValidTo}
}

// DaysUntilExpiry returns the whole days remaining until the version's
// validity ends, rounding partial days up, or nil for a version with no
// expiry. Negative values mean the version already expired.
func DaysUntilExpiry(v *EntityVersion, now time.Time) *int {
	if v == nil || v.ValidTo == nil {
		return nil
	}
	days := int(math.Ceil(v.ValidTo.Sub(now).Hours() / 24))
	return &days
}

// IsExpiringSoon reports whether the version expires within thresholdDays of
// now. Versions without an expiry never expire.
func IsExpiringSoon(v *EntityVersion, now time.Time, thresholdDays int) bool {
	if thresholdDays <= 0 {
		thresholdDays = DefaultExpiryThresholdDays
	}
	days := DaysUntilExpiry(v, now)
	if days == nil {
		return false
	}
	return *days >= 0 && *days <= thresholdDays
}

// IsExpired reports whether the version's validity ended at or before now.
func IsExpired(v *EntityVersion, now time.Time) bool {
	return v != nil && v.ValidTo != nil && !now.Before(*v.ValidTo)
}
