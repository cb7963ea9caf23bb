package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RiskAnalysis is the JSON contract expected from the risk model. Validation
// failures are reported back to the model for one repair attempt.
type RiskAnalysis struct {
	Risks []RiskItem `json:"risks" validate:"required,dive"`
}

type RiskItem struct {
	ClauseID         string       `json:"clause_id" validate:"required"`
	RiskLevel        string       `json:"risk_level" validate:"required,oneof=HIGH MEDIUM LOW INFO"`
	RiskType         string       `json:"risk_type" validate:"required"`
	Confidence       float64      `json:"confidence" validate:"gte=0,lte=1"`
	Summary          string       `json:"summary" validate:"required"`
	Suggestion       string       `json:"suggestion"`
	ContractEvidence string       `json:"contract_evidence"`
	KBEvidence       []KBEvidence `json:"kb_evidence" validate:"dive"`
}

type KBEvidence struct {
	ChunkID    string `json:"chunk_id" validate:"required"`
	QuoteText  string `json:"quote_text" validate:"required"`
	DocTitle   string `json:"doc_title"`
	DocVersion int    `json:"doc_version" validate:"gte=0"`
}

var validate = newValidator()

// newValidator reports field names by their json tag so validation errors are
// meaningful when echoed back to the model in a repair prompt.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseRiskAnalysis decodes and validates model output. The returned error
// message is suitable for embedding in a repair prompt.
func ParseRiskAnalysis(raw string) (RiskAnalysis, error) {
	var analysis RiskAnalysis
	cleaned := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return RiskAnalysis{}, fmt.Errorf("output is not valid JSON: %w", err)
	}
	if err := validate.Struct(analysis); err != nil {
		return RiskAnalysis{}, fmt.Errorf("output does not match the required schema: %s", describeValidation(err))
	}
	return analysis, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("field %s failed rule %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// stripCodeFence removes a leading/trailing markdown fence some models emit
// even in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
