package models

import "time"

// HeuristicRejection enumerates why the heuristic filter rejected a message.
type HeuristicRejection string

const (
	RejectEmpty           HeuristicRejection = "empty"
	RejectTooShort        HeuristicRejection = "too_short"
	RejectTooLong         HeuristicRejection = "too_long"
	RejectNegativeKeyword HeuristicRejection = "keyword_negativa"
	RejectLowScore        HeuristicRejection = "score_baixo"
)

// HeuristicResult is the outcome of the cheap pre-classification filter.
// It is fully re-derivable from the message text, so it is persisted only
// as a cache, never as a source of truth.
type HeuristicResult struct {
	Passed     bool               `json:"passed"`
	Score      float64            `json:"score"`
	Categories []string           `json:"categories,omitempty"`
	Rejection  HeuristicRejection `json:"rejection,omitempty"`
}

// FieldCandidate is one extracted value for a field family, with the
// extractor's confidence in it and the source text span it came from.
type FieldCandidate[T any] struct {
	Value      T       `json:"value"`
	Confidence float64 `json:"confidence"`
	Span       string  `json:"span,omitempty"`
}

// Hospital is a raw hospital mention before normalization.
type Hospital struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Period is a canonical shift period.
type Period string

const (
	PeriodMorning   Period = "manha"
	PeriodAfternoon Period = "tarde"
	PeriodNight     Period = "noite"
	PeriodDay       Period = "diurno"
	PeriodNocturnal Period = "noturno"
	PeriodCinderela Period = "cinderela"
	PeriodFullDay   Period = "plantao_24h"
)

// DatePeriod is one concrete shift slot: a calendar date plus a period,
// optionally with explicit start and end times.
type DatePeriod struct {
	Date      time.Time    `json:"date"`
	Weekday   time.Weekday `json:"weekday"`
	Period    Period       `json:"period"`
	StartTime string       `json:"start_time,omitempty"`
	EndTime   string       `json:"end_time,omitempty"`
}

// MoneyValue carries a monetary amount in centavos alongside an explicit
// resolution flag, so that "zero reais" and "not stated / to be
// negotiated" stay distinguishable. The wire value for unresolved is 0.
type MoneyValue struct {
	AmountCents int64 `json:"amount_cents"`
	Resolved    bool  `json:"resolved"`
}

// ValueRule binds an amount to the weekdays it applies to. An empty Days
// slice means a flat rate covering every weekday.
type ValueRule struct {
	Days        []time.Weekday `json:"days,omitempty"`
	AmountCents int64          `json:"amount_cents"`
	Raw         string         `json:"raw,omitempty"`
}

// Matches reports whether the rule covers the given weekday.
func (r ValueRule) Matches(day time.Weekday) bool {
	if len(r.Days) == 0 {
		return true
	}
	for _, d := range r.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Flat reports whether the rule is a single rate with no weekday scoping.
func (r ValueRule) Flat() bool { return len(r.Days) == 0 }

// Contact is an extracted contact person for a posting.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Specialty is a raw medical specialty mention before normalization.
type Specialty struct {
	Name string `json:"name"`
}

// ExtractionResult is the structured output of the classification and
// field-extraction stage, regardless of which strategy produced it.
type ExtractionResult struct {
	IsPosting     bool                         `json:"is_posting"`
	Confidence    float64                      `json:"confidence"`
	Hospitals     []FieldCandidate[Hospital]   `json:"hospitals,omitempty"`
	DatePeriods   []FieldCandidate[DatePeriod] `json:"date_periods,omitempty"`
	Values        []FieldCandidate[ValueRule]  `json:"values,omitempty"`
	Contact       *FieldCandidate[Contact]     `json:"contact,omitempty"`
	Specialties   []FieldCandidate[Specialty]  `json:"specialties,omitempty"`
	Strategy      string                       `json:"strategy"`
	ReferenceDate time.Time                    `json:"reference_date"`
}
