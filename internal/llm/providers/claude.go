package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/internal/pipeerr"
	"plantao-pipeline/pkg/models"
)

// ErrInvalidResponse marks a provider reply that could not be parsed as the
// expected structured JSON. Callers treat it as zero extracted fields, not
// as a retryable failure.
var ErrInvalidResponse = errors.New("invalid structured response from provider")

// ClaudeProvider implements the Provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client anthropic.Client
	config *config.Config
	logger logging.Logger
}

// NewClaudeProvider creates a new Claude provider instance
func NewClaudeProvider(cfg *config.Config) *ClaudeProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.LLM.APIKey),
	)

	return &ClaudeProvider{
		client: client,
		config: cfg,
		logger: logging.GetGlobalLogger(),
	}
}

// claudeExtraction is the wire shape Claude is instructed to return.
type claudeExtraction struct {
	IsPosting  bool    `json:"is_posting"`
	Confidence float64 `json:"confidence"`
	Hospitals  []struct {
		Name       string  `json:"name"`
		Address    string  `json:"address"`
		Confidence float64 `json:"confidence"`
	} `json:"hospitals"`
	DatePeriods []struct {
		Date       string  `json:"date"`
		Period     string  `json:"period"`
		StartTime  string  `json:"start_time"`
		EndTime    string  `json:"end_time"`
		Confidence float64 `json:"confidence"`
	} `json:"date_periods"`
	Values []struct {
		AmountCents int64   `json:"amount_cents"`
		Weekdays    []int   `json:"weekdays"`
		Raw         string  `json:"raw"`
		Confidence  float64 `json:"confidence"`
	} `json:"values"`
	Contact *struct {
		Name       string  `json:"name"`
		Phone      string  `json:"phone"`
		Confidence float64 `json:"confidence"`
	} `json:"contact"`
	Specialties []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"specialties"`
}

// ClassifyAndExtract sends the message text to Claude and parses the
// structured reply into an ExtractionResult.
func (cp *ClaudeProvider) ClassifyAndExtract(ctx context.Context, text string, referenceDate time.Time) (*models.ExtractionResult, error) {
	startTime := time.Now()

	cp.logger.Debug("Starting unified extraction with Claude", map[string]interface{}{
		"text_length": len(text),
		"provider":    "claude",
	})

	// Truncate to fit token limits. Rough estimation: 3 chars per token.
	maxContentLength := cp.config.LLM.MaxTokens * 3
	if len(text) > maxContentLength {
		text = text[:maxContentLength] + "..."
		cp.logger.Debug("Message truncated to fit token limits")
	}

	prompt := cp.buildExtractionPrompt(text, referenceDate)

	response, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cp.config.LLM.Model),
		MaxTokens:   int64(cp.config.LLM.MaxTokens),
		Temperature: anthropic.Float(float64(cp.config.LLM.Temperature)),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})

	if err != nil {
		return nil, classifyAPIError(err)
	}

	result, err := cp.parseClaudeResponse(response, referenceDate)
	if err != nil {
		return nil, err
	}

	cp.logger.Info("Unified extraction completed", map[string]interface{}{
		"is_posting":      result.IsPosting,
		"hospitals":       len(result.Hospitals),
		"date_periods":    len(result.DatePeriods),
		"processing_time": time.Since(startTime).String(),
		"provider":        "claude",
	})

	return result, nil
}

// classifyAPIError maps transport and API failures onto the pipeline error
// taxonomy. Timeouts and rate limits are retryable; everything else is not.
func classifyAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pipeerr.Wrap(err, models.ErrorKindTransientExternal, "claude request timed out")
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests:
			return pipeerr.Wrap(err, models.ErrorKindTransientExternal, "claude rate limited")
		case apierr.StatusCode >= 500:
			return pipeerr.Wrap(err, models.ErrorKindTransientExternal, "claude server error")
		}
	}

	return pipeerr.Wrap(err, models.ErrorKindInternal, "claude API call failed")
}

// buildExtractionPrompt creates the Brazilian-Portuguese prompt for Claude.
func (cp *ClaudeProvider) buildExtractionPrompt(text string, referenceDate time.Time) string {
	return fmt.Sprintf(`Você é um analisador de mensagens de grupos de WhatsApp de plantões médicos. Decida se a mensagem abaixo divulga vagas de plantão e extraia os campos estruturados, retornando um objeto JSON.

A data de referência para resolver datas relativas ("amanhã", "sexta") é %s.

Retorne um JSON válido exatamente com estes campos:

{
  "is_posting": boolean - true se a mensagem divulga pelo menos uma vaga de plantão,
  "confidence": number - confiança geral da classificação, entre 0 e 1,
  "hospitals": [{"name": "string - nome do hospital/unidade", "address": "string - endereço se houver", "confidence": number}],
  "date_periods": [{"date": "string - data no formato YYYY-MM-DD", "period": "string - um de: manha, tarde, noite, diurno, noturno, cinderela, plantao_24h", "start_time": "string - HH:MM se houver", "end_time": "string - HH:MM se houver", "confidence": number}],
  "values": [{"amount_cents": number - valor em centavos, "weekdays": [números 0-6, 0=domingo, vazio se valor único], "raw": "string - trecho original", "confidence": number}],
  "contact": {"name": "string", "phone": "string - apenas dígitos", "confidence": number} ou null,
  "specialties": [{"name": "string - especialidade médica", "confidence": number}]
}

REGRAS IMPORTANTES:
1. Retorne APENAS o JSON, sem texto adicional ou explicação
2. Se uma informação não existir, use lista vazia [] ou null
3. Valores monetários sempre em centavos (R$ 1.800 = 180000)
4. "Valor a combinar" NÃO gera entrada em values
5. Datas sem ano assumem o próximo ano em que a data ainda não passou em relação à data de referência
6. Se a mensagem não for divulgação de plantão, retorne is_posting false com listas vazias mantendo a estrutura

MENSAGEM:
%s`, referenceDate.Format("2006-01-02"), text)
}

// parseClaudeResponse parses the Claude API response into an ExtractionResult.
func (cp *ClaudeProvider) parseClaudeResponse(response *anthropic.Message, referenceDate time.Time) (*models.ExtractionResult, error) {
	if len(response.Content) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	var responseText string
	for _, content := range response.Content {
		textContent := content.AsText()
		responseText = textContent.Text
		break
	}

	if responseText == "" {
		return nil, fmt.Errorf("%w: no text content", ErrInvalidResponse)
	}

	// Strip markdown code fences if present.
	responseText = strings.TrimSpace(responseText)
	if strings.HasPrefix(responseText, "```json") {
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	} else if strings.HasPrefix(responseText, "```") {
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	}

	cp.logger.Debug("Claude response received", map[string]interface{}{
		"response_text": responseText,
	})

	var wire claudeExtraction
	if err := json.Unmarshal([]byte(responseText), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return cp.toExtractionResult(&wire, referenceDate), nil
}

func (cp *ClaudeProvider) toExtractionResult(wire *claudeExtraction, referenceDate time.Time) *models.ExtractionResult {
	result := &models.ExtractionResult{
		IsPosting:     wire.IsPosting,
		Confidence:    clamp01(wire.Confidence),
		Strategy:      "unified",
		ReferenceDate: referenceDate,
	}

	for _, h := range wire.Hospitals {
		if h.Name == "" {
			continue
		}
		result.Hospitals = append(result.Hospitals, models.FieldCandidate[models.Hospital]{
			Value:      models.Hospital{Name: h.Name, Address: h.Address},
			Confidence: clamp01(h.Confidence),
		})
	}

	for _, dp := range wire.DatePeriods {
		date, err := time.Parse("2006-01-02", dp.Date)
		if err != nil {
			cp.logger.Warn("Dropping date_period with unparseable date", map[string]interface{}{
				"date": dp.Date,
			})
			continue
		}
		result.DatePeriods = append(result.DatePeriods, models.FieldCandidate[models.DatePeriod]{
			Value: models.DatePeriod{
				Date:      date,
				Weekday:   date.Weekday(),
				Period:    models.Period(dp.Period),
				StartTime: dp.StartTime,
				EndTime:   dp.EndTime,
			},
			Confidence: clamp01(dp.Confidence),
		})
	}

	for _, v := range wire.Values {
		if v.AmountCents <= 0 {
			continue
		}
		days := make([]time.Weekday, 0, len(v.Weekdays))
		for _, d := range v.Weekdays {
			if d >= 0 && d <= 6 {
				days = append(days, time.Weekday(d))
			}
		}
		result.Values = append(result.Values, models.FieldCandidate[models.ValueRule]{
			Value:      models.ValueRule{Days: days, AmountCents: v.AmountCents, Raw: v.Raw},
			Confidence: clamp01(v.Confidence),
		})
	}

	if wire.Contact != nil && (wire.Contact.Name != "" || wire.Contact.Phone != "") {
		result.Contact = &models.FieldCandidate[models.Contact]{
			Value:      models.Contact{Name: wire.Contact.Name, Phone: wire.Contact.Phone},
			Confidence: clamp01(wire.Contact.Confidence),
		}
	}

	for _, s := range wire.Specialties {
		if s.Name == "" {
			continue
		}
		result.Specialties = append(result.Specialties, models.FieldCandidate[models.Specialty]{
			Value:      models.Specialty{Name: s.Name},
			Confidence: clamp01(s.Confidence),
		})
	}

	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// IsHealthy checks if the Claude provider is healthy and available
func (cp *ClaudeProvider) IsHealthy(ctx context.Context) error {
	if cp.config.LLM.APIKey == "" {
		return fmt.Errorf("Claude API key not configured - set LLM_API_KEY environment variable")
	}

	_, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(cp.config.LLM.Model),
		MaxTokens: 16,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: "Olá"},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})

	if err != nil {
		return fmt.Errorf("Claude API health check failed: %w", err)
	}

	return nil
}

// GetProviderName returns the name of the LLM provider
func (cp *ClaudeProvider) GetProviderName() string {
	return "claude"
}
