package relay

import (
	"encoding/json"

	"github.com/sugun00/Meta-martin/api/internal/util"
)

const degradedFinalAnswer = "Analysis complete"

type modelReply struct {
	Type           json.RawMessage `json:"type"`
	Steps          json.RawMessage `json:"steps"`
	FinalAnswer    json.RawMessage `json:"final_answer"`
	FinalAnswerAlt json.RawMessage `json:"finalAnswer"`
}

// ExtractResult turns free-form model text into a Result. It never fails:
// without a usable JSON object it returns the degraded shape. The raw text is
// kept verbatim either way.
func ExtractResult(raw string) Result {
	if span, ok := util.ExtractFirstJSONObject(raw); ok {
		var reply modelReply
		if err := json.Unmarshal([]byte(span), &reply); err == nil {
			typ, _ := util.Scalar(reply.Type)
			answer, ok := util.Scalar(reply.FinalAnswer)
			if !ok {
				answer, _ = util.Scalar(reply.FinalAnswerAlt)
			}
			return Result{
				Success:          true,
				Type:             ParseCategory(typ),
				Steps:            util.StringOrList(reply.Steps),
				FinalAnswer:      answer,
				RawModelResponse: raw,
			}
		}
	}
	return degraded(raw)
}

func degraded(raw string) Result {
	return Result{
		Success:          true,
		Type:             CategoryOther,
		Steps:            []string{raw},
		FinalAnswer:      degradedFinalAnswer,
		RawModelResponse: raw,
	}
}
