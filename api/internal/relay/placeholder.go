package relay

const demoRawResponse = "Demo mode active"

var demoSteps = []string{
	"1. Image received successfully",
	"2. Demo mode is active (no model API key configured)",
	"3. For real analysis set OPENAI_API_KEY (or GEMINI_API_KEY with LLM_PROVIDER=gemini) in .env",
	"4. Restart the server to enable live analysis",
}

const demoFinalAnswer = "The backend is working! Add an API key to get real analysis."

// Placeholder is the fixed result returned when no model credential is set.
func Placeholder() Result {
	steps := make([]string, len(demoSteps))
	copy(steps, demoSteps)
	return Result{
		Success:          true,
		Type:             CategoryMath,
		Steps:            steps,
		FinalAnswer:      demoFinalAnswer,
		RawModelResponse: demoRawResponse,
	}
}
