package relay

import (
	"encoding/json"
	"strings"
)

type Category string

const (
	CategoryMath  Category = "math"
	CategoryText  Category = "text"
	CategoryOther Category = "other"
)

// ParseCategory maps a model-supplied label onto one of the three categories.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryMath:
		return CategoryMath
	case CategoryText:
		return CategoryText
	default:
		return CategoryOther
	}
}

// Result is the single response produced for an upload.
type Result struct {
	Success          bool
	Type             Category
	Steps            []string
	FinalAnswer      string
	RawModelResponse string
	Error            string
}

type successWire struct {
	Success          bool     `json:"success"`
	Type             Category `json:"type"`
	Steps            []string `json:"steps"`
	FinalAnswer      string   `json:"final_answer"`
	RawModelResponse string   `json:"raw_model_response"`
}

type failureWire struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MarshalJSON emits the success shape or the {success:false,error} shape.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(failureWire{Success: false, Error: r.Error})
	}
	steps := r.Steps
	if steps == nil {
		steps = []string{}
	}
	typ := r.Type
	if typ == "" {
		typ = CategoryOther
	}
	return json.Marshal(successWire{
		Success:          true,
		Type:             typ,
		Steps:            steps,
		FinalAnswer:      r.FinalAnswer,
		RawModelResponse: r.RawModelResponse,
	})
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var w struct {
		successWire
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Result{
		Success:          w.Success,
		Steps:            w.Steps,
		FinalAnswer:      w.FinalAnswer,
		RawModelResponse: w.RawModelResponse,
		Error:            w.Error,
	}
	if w.Success {
		r.Type = ParseCategory(string(w.Type))
	}
	return nil
}

func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}
