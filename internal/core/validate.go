package core

import (
	"fmt"
	"regexp"
	"strings"
)

// Section headings of a summary, in the order they must appear.
const (
	HeadingSymptoms     = "#### Symptoms identified and information"
	HeadingDiagnosis    = "#### Diagnosis"
	HeadingAlternatives = "#### Alternative diagnoses"
	HeadingFurtherSteps = "#### Recommended further steps"
	HeadingTreatment    = "#### Potential treatment options"

	// ClosingLine must be the last non-blank line, byte for byte.
	ClosingLine = "Clinician review required."

	LeadInPatient   = "Based on your answers to the questions"
	LeadInClinician = "Based on the answers to the questions"
)

var sectionOrder = []string{
	HeadingSymptoms,
	HeadingDiagnosis,
	HeadingAlternatives,
	HeadingFurtherSteps,
	HeadingTreatment,
}

var tableHeaderRE = regexp.MustCompile(`(?i)\|\s*Symptom\s*\|\s*Question\s*\|\s*Answer\s*\|`)

// Reason identifies the clause of the output contract a text broke.
type Reason string

const (
	ReasonCodeFence         Reason = "code_fence"
	ReasonProhibitedWording Reason = "prohibited_wording"
	ReasonOpeningHeading    Reason = "opening_heading"
	ReasonSectionOrder      Reason = "section_order"
	ReasonTableHeader       Reason = "table_header"
	ReasonLeadIn            Reason = "lead_in"
	ReasonClosingLine       Reason = "closing_line"
)

// ContractViolation reports the first contract clause a summary failed.
type ContractViolation struct {
	Reason Reason
	Detail string
}

func (v *ContractViolation) Error() string {
	return fmt.Sprintf("contract violation (%s): %s", v.Reason, v.Detail)
}

func violation(r Reason, format string, args ...any) *ContractViolation {
	return &ContractViolation{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks text against the summary contract and returns nil or the
// first *ContractViolation found.  Checks run in a fixed order:
//
//  1. no ``` code fence
//  2. no "provisional", in any case
//  3. the first non-blank line is exactly HeadingSymptoms
//  4. each section heading appears once, in sectionOrder
//  5. a Symptom | Question | Answer table header
//  6. one of the two Diagnosis lead-in phrases, case-sensitive
//  7. the last non-blank line is exactly ClosingLine
func Validate(text string) error {
	if strings.Contains(text, "```") {
		return violation(ReasonCodeFence, "summary contains a code fence")
	}
	if strings.Contains(strings.ToLower(text), "provisional") {
		return violation(ReasonProhibitedWording, "summary uses the word %q", "provisional")
	}

	lines := splitLines(text)
	first := ""
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			first = t
			break
		}
	}
	if first != HeadingSymptoms {
		return violation(ReasonOpeningHeading, "summary must start with %q, starts with %q", HeadingSymptoms, first)
	}

	if err := checkSectionOrder(lines); err != nil {
		return err
	}

	if !tableHeaderRE.MatchString(text) {
		return violation(ReasonTableHeader, "summary table header is missing")
	}
	if !strings.Contains(text, LeadInPatient) && !strings.Contains(text, LeadInClinician) {
		return violation(ReasonLeadIn, "diagnosis section lacks the required lead-in phrase")
	}

	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			last = lines[i]
			break
		}
	}
	if last != ClosingLine {
		return violation(ReasonClosingLine, "summary must end with %q, ends with %q", ClosingLine, last)
	}
	return nil
}

// checkSectionOrder finds every heading line and requires each known
// heading exactly once, in order.
func checkSectionOrder(lines []string) error {
	pos := make(map[string]int, len(sectionOrder))
	for i, l := range lines {
		t := strings.TrimSpace(l)
		for _, h := range sectionOrder {
			if t != h {
				continue
			}
			if _, dup := pos[h]; dup {
				return violation(ReasonSectionOrder, "heading %q appears more than once", h)
			}
			pos[h] = i
		}
	}
	prev := -1
	for _, h := range sectionOrder {
		at, ok := pos[h]
		if !ok {
			return violation(ReasonSectionOrder, "missing section heading %q", h)
		}
		if at <= prev {
			return violation(ReasonSectionOrder, "heading %q is out of order", h)
		}
		prev = at
	}
	return nil
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
