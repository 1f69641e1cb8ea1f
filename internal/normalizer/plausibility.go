package normalizer

import (
	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/utils"
)

// PlausibilityValidator rejects strings that obviously are not hospital
// names before any external registry or the catalog is consulted. Cheap
// string checks here save paid lookups and keep junk out of the catalog.
type PlausibilityValidator struct {
	implausible map[string]bool
	specialties map[string]bool
}

// NewPlausibilityValidator builds the validator from the dictionary.
func NewPlausibilityValidator(dict *dictionary.Dictionary) *PlausibilityValidator {
	implausible := make(map[string]bool, len(dict.ImplausibleHospitals))
	for _, w := range dict.ImplausibleHospitals {
		implausible[w] = true
	}
	specialties := make(map[string]bool, len(dict.Specialties))
	for _, s := range dict.Specialties {
		specialties[s] = true
	}
	return &PlausibilityValidator{implausible: implausible, specialties: specialties}
}

// IsPlausibleHospital reports whether the normalized name could name a
// health facility.
func (v *PlausibilityValidator) IsPlausibleHospital(name string) bool {
	name = utils.NormalizeText(name)
	if len(name) < 4 {
		return false
	}

	// Phone-shaped text is never a facility name.
	digits := utils.OnlyDigits(name)
	if len(digits) >= 8 && len(digits) >= len(name)/2 {
		return false
	}

	// Generic words, retailer-style names and bare specialty names used
	// as if they were facilities.
	if v.implausible[name] || v.specialties[name] {
		return false
	}

	return true
}
