package extraction

import (
	"regexp"
	"strings"

	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

var (
	// Brazilian mobile/landline shapes, with optional country code and DDD.
	phoneRe       = regexp.MustCompile(`(?:\+?55[\s.-]*)?(?:\(?\d{2}\)?[\s.-]*)?\d{4,5}[\s.-]?\d{4}\b`)
	contactNameRe = regexp.MustCompile(`(?:falar com|contato|interessados? (?:chamar|falar com)|chamar)[\s:]*([a-z][a-z ]{1,40})`)
)

// extractContact finds a contact person and phone in the text block. A
// phone number is strong evidence; a bare name after "falar com" is weak.
func extractContact(text string) *models.FieldCandidate[models.Contact] {
	normalized := utils.NormalizeText(text)
	if normalized == "" {
		return nil
	}

	var contact models.Contact
	confidence := 0.0

	if m := phoneRe.FindString(normalized); m != "" {
		digits := utils.OnlyDigits(m)
		// Dates and monetary values produce short digit runs; a real
		// phone has at least DDD plus eight digits.
		if len(digits) >= 10 && len(digits) <= 13 {
			contact.Phone = digits
			confidence = 0.85
		}
	}

	if m := contactNameRe.FindStringSubmatch(normalized); m != nil {
		name := strings.TrimSpace(m[1])
		for _, sep := range []string{" no ", " pelo ", " whatsapp", " zap", " fone"} {
			if idx := strings.Index(name, sep); idx > 0 {
				name = name[:idx]
			}
		}
		name = strings.TrimSpace(name)
		if name != "" && len(name) > 1 {
			contact.Name = name
			if confidence < 0.5 {
				confidence = 0.5
			}
		}
	}

	if contact.Phone == "" && contact.Name == "" {
		return nil
	}

	return &models.FieldCandidate[models.Contact]{
		Value:      contact,
		Confidence: confidence,
		Span:       contact.Phone,
	}
}
