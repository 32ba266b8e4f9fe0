package core

import (
	"strings"
)

// AlternativesText renders the alternative diagnoses as the sentence that
// fills the Alternative diagnoses section.
func AlternativesText(alternatives []string) string {
	if len(alternatives) == 0 {
		return "No other possible diagnoses were suggested by the logic. A proper consultation is required to confirm the diagnosis."
	}
	return "Other possible diagnoses include " + strings.Join(alternatives, ", ") +
		". A proper consultation is required to confirm the diagnosis."
}

// Normalize prepares generated text for validation.  Anything before the
// opening heading is dropped, and the body of the Alternative diagnoses
// section, up to the next "#### " heading, is replaced with
// AlternativesText(alternatives).  Text without those headings is only
// trimmed.
func Normalize(text string, alternatives []string) string {
	lines := splitLines(text)
	for i, l := range lines {
		if strings.TrimSpace(l) == HeadingSymptoms {
			lines = lines[i:]
			break
		}
	}

	start := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == HeadingAlternatives {
			start = i
			break
		}
	}
	if start >= 0 {
		end := len(lines)
		for i := start + 1; i < len(lines); i++ {
			if strings.HasPrefix(strings.TrimSpace(lines[i]), "#### ") {
				end = i
				break
			}
		}
		spliced := make([]string, 0, len(lines)+3)
		spliced = append(spliced, lines[:start+1]...)
		spliced = append(spliced, "", AlternativesText(alternatives), "")
		spliced = append(spliced, lines[end:]...)
		lines = spliced
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
