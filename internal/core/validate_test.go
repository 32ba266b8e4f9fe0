package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAcceptsContractDocument(t *testing.T) {
	if err := Validate(goodDoc()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	clinician := strings.Replace(goodDoc(), LeadInPatient, LeadInClinician, 1)
	if err := Validate(clinician); err != nil {
		t.Fatalf("clinician lead-in: %v", err)
	}
	crlf := strings.ReplaceAll(goodDoc(), "\n", "\r\n")
	if err := Validate(crlf); err != nil {
		t.Fatalf("CRLF: %v", err)
	}
}

func TestValidateReasons(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Reason
	}{
		{"code fence", strings.Replace(goodDoc(), "- Hearing test.", "```\n- Hearing test.\n```", 1), ReasonCodeFence},
		{"provisional", strings.Replace(goodDoc(), "most likely", "Provisional", 1), ReasonProhibitedWording},
		{"preamble", "Here is your report.\n\n" + goodDoc(), ReasonOpeningHeading},
		{"loose heading", strings.Replace(goodDoc(), HeadingSymptoms, "#### Symptoms", 1), ReasonOpeningHeading},
		{"empty", "", ReasonOpeningHeading},
		{"alternatives first", doc(symptomsSection, altSection, diagnosisSection, stepsSection, treatmentSection, ClosingLine), ReasonSectionOrder},
		{"missing treatment", doc(symptomsSection, diagnosisSection, altSection, stepsSection, ClosingLine), ReasonSectionOrder},
		{"duplicate diagnosis", doc(symptomsSection, diagnosisSection, diagnosisSection, altSection, stepsSection, treatmentSection, ClosingLine), ReasonSectionOrder},
		{"no table", strings.Replace(goodDoc(), "| Symptom | Question | Answer |", "Symptom, question, answer", 1), ReasonTableHeader},
		{"no lead-in", strings.Replace(goodDoc(), LeadInPatient, "Given what you told us", 1), ReasonLeadIn},
		{"lead-in wrong case", strings.Replace(goodDoc(), LeadInPatient, strings.ToLower(LeadInPatient), 1), ReasonLeadIn},
		{"missing closing", strings.TrimSuffix(goodDoc(), ClosingLine), ReasonClosingLine},
		{"closing without period", strings.TrimSuffix(goodDoc(), "."), ReasonClosingLine},
		{"closing with trailing space", goodDoc() + " ", ReasonClosingLine},
		{"text after closing", goodDoc() + "\nThanks!", ReasonClosingLine},
	}
	for _, tc := range tests {
		err := Validate(tc.text)
		var cv *ContractViolation
		if !errors.As(err, &cv) {
			t.Errorf("%s: err = %v, want a ContractViolation", tc.name, err)
			continue
		}
		if cv.Reason != tc.want {
			t.Errorf("%s: reason = %s (%s), want %s", tc.name, cv.Reason, cv.Detail, tc.want)
		}
	}
}

func TestValidateToleratesTrailingBlankLines(t *testing.T) {
	if err := Validate(goodDoc() + "\n\n   \n"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateTableHeaderIsCaseInsensitive(t *testing.T) {
	text := strings.Replace(goodDoc(), "| Symptom | Question | Answer |", "|symptom|QUESTION|  answer  |", 1)
	if err := Validate(text); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestAlternativesBeforeSymptomsIsRejected(t *testing.T) {
	text := doc(altSection, symptomsSection, diagnosisSection, stepsSection, treatmentSection, ClosingLine)

	var cv *ContractViolation
	if err := Validate(text); !errors.As(err, &cv) || cv.Reason != ReasonOpeningHeading {
		t.Fatalf("raw text: err = %v, want opening_heading", err)
	}
	// Normalising drops everything above the opening heading, which takes
	// the misplaced section with it.
	if err := Validate(Normalize(text, nil)); !errors.As(err, &cv) || cv.Reason != ReasonSectionOrder {
		t.Fatalf("normalised text: err = %v, want section_order", err)
	}
}
