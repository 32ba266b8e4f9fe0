package core

// prompts.go defines the prompts used by the summary generators.  Keeping
// them in a separate file makes them easy to tweak without touching the
// rest of the code.

import (
	"strings"

	"earcheck/pkg"
)

const (
	// summaryContract describes the document the validator accepts.  Both
	// audiences share it; only the wording instructions differ.
	summaryContract = "Write the report in Markdown using exactly these level-4 headings, once each, in this order:\n" +
		HeadingSymptoms + "\n" +
		HeadingDiagnosis + "\n" +
		HeadingAlternatives + "\n" +
		HeadingFurtherSteps + "\n" +
		HeadingTreatment + "\n\n" +
		"Rules:\n" +
		"- The first line of the output is the " + HeadingSymptoms + " heading. Nothing comes before it.\n" +
		"- Under the first heading, list every question asked in a table whose header row is | Symptom | Question | Answer |, in the order given in questionsAsked.\n" +
		"- Use only the diagnoses, expectations and answers provided. Never invent findings.\n" +
		"- Never use the word \"provisional\". Never use code fences.\n" +
		"- The Alternative diagnoses section may be left short; it is filled in afterwards.\n" +
		"- Use clear British English.\n" +
		"- The very last line is exactly: " + ClosingLine

	// ClinicianSummaryPrompt is the system prompt for reports read by the
	// treating clinician.
	ClinicianSummaryPrompt = "You are assisting a GP by turning a structured ear symptom assessment into a clinical report. " +
		"Use professional clinical terminology and keep the report concise. " +
		"Start the Diagnosis section with the phrase \"" + LeadInClinician + "\".\n\n" + summaryContract

	// PatientSummaryPrompt is the system prompt for reports read by the
	// patient.  Wording is plain; the facts are the same.
	PatientSummaryPrompt = "You are helping a patient understand the result of an ear symptom questionnaire. " +
		"Address the patient as \"you\", explain medical terms in plain words and keep a calm, reassuring tone. " +
		"Start the Diagnosis section with the phrase \"" + LeadInPatient + "\".\n\n" + summaryContract
)

// SummaryPrompt picks the system prompt for audience a.
func SummaryPrompt(a pkg.Audience) string {
	if a == pkg.AudienceClinician {
		return ClinicianSummaryPrompt
	}
	return PatientSummaryPrompt
}

// Decision-tree summary prompts: draft, QA review, revision.
const (
	TreeDraftPrompt = "You are assisting a GP by drafting a concise clinical summary of a decision pathway. " +
		"Use only the provided pathway data and do not invent findings or diagnoses. " +
		"Use clear, professional British English and keep it under 180 words. " +
		"Output a short paragraph, then a \"Questions and responses\" bullet list, then a \"Suggested next actions\" bullet list. " +
		"If any step indicates urgency, say so explicitly. End with: \"" + ClosingLine + "\""

	TreeReviewPrompt = "You are a clinical QA reviewer for a GP summary.\n" +
		"You receive the structured pathway data and a drafted summary. Critique the draft against these constraints: " +
		"only provided data, no hallucinations, British English, at most 180 words, Markdown with a paragraph and two lists, " +
		"final line exactly \"" + ClosingLine + "\".\n" +
		"Respond with a JSON object only: {\"pass\": boolean, \"issues\": [string], \"fixes\": [string]}. " +
		"If there are no issues, pass is true and both arrays are empty."

	TreeRevisionPrompt = "You are revising a GP summary based on QA feedback. " +
		"Produce a corrected summary that satisfies every constraint: only provided data, British English, at most 180 words, " +
		"Markdown with a paragraph, a **Questions and responses** list and a **Suggested next actions** list, " +
		"final line exactly \"" + ClosingLine + "\". Return only the revised Markdown."
)

// bulletList joins items as "- " lines, or "- none" when empty.
func bulletList(items []string) string {
	if len(items) == 0 {
		return "- none"
	}
	return "- " + strings.Join(items, "\n- ")
}
