package models

import "time"

// FieldConfidences carries the per-field confidence that went into a
// posting's overall score.
type FieldConfidences struct {
	Hospital   float64 `json:"hospital"`
	DatePeriod float64 `json:"date_period"`
	Value      float64 `json:"value"`
	Contact    float64 `json:"contact"`
	Specialty  float64 `json:"specialty"`
}

// Provenance records where a posting came from.
type Provenance struct {
	MessageID string    `json:"message_id"`
	GroupID   string    `json:"group_id"`
	SeenAt    time.Time `json:"seen_at"`
}

// AtomicPosting is one fully specified candidate job opening: a single
// hospital on a single date/period slot, with its value resolved for that
// slot's weekday. Never mutated after creation; normalization writes into
// a derived NormalizedPosting instead.
type AtomicPosting struct {
	ID              string           `json:"id"`
	Date            time.Time        `json:"date"`
	Weekday         time.Weekday     `json:"weekday"`
	Period          Period           `json:"period"`
	StartTime       string           `json:"start_time,omitempty"`
	EndTime         string           `json:"end_time,omitempty"`
	Value           MoneyValue       `json:"value"`
	HospitalName    string           `json:"hospital_name"`
	HospitalAddress string           `json:"hospital_address,omitempty"`
	SpecialtyName   string           `json:"specialty_name,omitempty"`
	ContactName     string           `json:"contact_name,omitempty"`
	ContactPhone    string           `json:"contact_phone,omitempty"`
	Confidences     FieldConfidences `json:"confidences"`
	Overall         float64          `json:"overall_confidence"`
	Warnings        []string         `json:"warnings,omitempty"`
	Provenance      Provenance       `json:"provenance"`
}

// EntityType identifies a canonical catalog entity family.
type EntityType string

const (
	EntityHospital  EntityType = "hospital"
	EntitySpecialty EntityType = "specialty"
	EntityPeriod    EntityType = "period"
	EntitySector    EntityType = "sector"
)

// MatchSource tells how a canonical identifier was obtained.
type MatchSource string

const (
	MatchExactAlias   MatchSource = "exact_alias"
	MatchFuzzySimilar MatchSource = "fuzzy_similar"
	MatchCreated      MatchSource = "created"
)

// EntityMatch binds a raw entity string to a canonical catalog record.
// Present only when its score cleared the normalizer threshold for the
// source that produced it.
type EntityMatch struct {
	EntityID string      `json:"entity_id"`
	Name     string      `json:"name"`
	Score    float64     `json:"score"`
	Source   MatchSource `json:"source"`
}

// NormalizedPosting is an AtomicPosting plus the canonical identifiers the
// normalizer resolved for it.
type NormalizedPosting struct {
	Posting   AtomicPosting `json:"posting"`
	Hospital  *EntityMatch  `json:"hospital,omitempty"`
	Specialty *EntityMatch  `json:"specialty,omitempty"`
	Period    *EntityMatch  `json:"period,omitempty"`
	Sector    *EntityMatch  `json:"sector,omitempty"`
}

// PostingRef points at an existing canonical posting holding a dedup key.
type PostingRef struct {
	ID        string    `json:"id"`
	DedupKey  string    `json:"dedup_key"`
	CreatedAt time.Time `json:"created_at"`
	Sources   int       `json:"sources"`
}

// DedupOutcome is the result of checking one normalized posting against
// the rolling duplicate window.
type DedupOutcome struct {
	IsDuplicate        bool         `json:"is_duplicate"`
	CanonicalPostingID string       `json:"canonical_posting_id,omitempty"`
	Key                string       `json:"key,omitempty"`
	Sources            []Provenance `json:"sources,omitempty"`
	Skipped            bool         `json:"skipped,omitempty"`
	SkipReason         string       `json:"skip_reason,omitempty"`
}
