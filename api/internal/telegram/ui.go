package telegram

import (
	"fmt"
	"strings"

	"github.com/sugun00/Meta-martin/api/internal/relay"
)

var categoryTitle = map[relay.Category]string{
	relay.CategoryMath:  "🧮 Math problem",
	relay.CategoryText:  "📄 Text",
	relay.CategoryOther: "🔎 Image",
}

// FormatResult renders a relay result as a plain-text chat reply.
func FormatResult(res relay.Result) string {
	if !res.Success {
		return "⚠️ " + res.Error
	}

	var b strings.Builder
	title, ok := categoryTitle[res.Type]
	if !ok {
		title = categoryTitle[relay.CategoryOther]
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	if len(res.Steps) > 0 {
		b.WriteString("Steps:\n")
		for i, s := range res.Steps {
			s = strings.TrimSpace(s)
			if startsNumbered(s) {
				b.WriteString(s)
			} else {
				fmt.Fprintf(&b, "%d. %s", i+1, s)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if a := strings.TrimSpace(res.FinalAnswer); a != "" {
		b.WriteString("✅ Answer: ")
		b.WriteString(a)
	}
	return strings.TrimRight(b.String(), "\n")
}

// startsNumbered reports whether s already begins with "1." style numbering.
func startsNumbered(s string) bool {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')')
}
