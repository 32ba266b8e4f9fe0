package core

import (
	"earcheck/internal/inference"
	"earcheck/pkg"
)

// BuildSummaryPayload projects completed responses and their inference into
// the document handed to the generation backend.  Symptoms keep catalog
// order; a screening answer that was never given reads "No".
func BuildSummaryPayload(engine *inference.Engine, responses pkg.Responses, audience pkg.Audience) pkg.SummaryPayload {
	catalog := engine.Catalog()
	p := pkg.SummaryPayload{
		Area:             catalog.Area,
		Audience:         audience,
		SymptomOrder:     catalog.Labels(),
		Symptoms:         make([]pkg.SymptomSummary, 0, catalog.Len()),
		NegativeSymptoms: []string{},
		QuestionsAsked:   []pkg.QuestionAsked{},
	}

	for _, s := range catalog.Symptoms {
		r := responses[s.ID]
		present := r.IsPresent()
		prompt := s.Prompts.For(audience)
		answer, ok := r.Answers.Get(s.InitialQuestionID())
		if !ok {
			answer = "No"
		}
		if !present {
			p.NegativeSymptoms = append(p.NegativeSymptoms, s.Label)
		}
		p.QuestionsAsked = append(p.QuestionsAsked, pkg.QuestionAsked{
			Symptom:  s.Label,
			Question: prompt,
			Answer:   answer,
			Type:     pkg.KindInitial,
		})

		followUps := []pkg.FollowUpAnswer{}
		for _, q := range s.FollowUps {
			a, ok := r.Answers.Get(q.ID)
			if !ok || a == "" {
				continue
			}
			a = catalog.FormatAnswer(q.ID, a, audience)
			followUps = append(followUps, pkg.FollowUpAnswer{Question: q.Prompt, Answer: a})
			p.QuestionsAsked = append(p.QuestionsAsked, pkg.QuestionAsked{
				Symptom:  s.Label,
				Question: q.Prompt,
				Answer:   a,
				Type:     pkg.KindFollowUp,
			})
		}

		p.Symptoms = append(p.Symptoms, pkg.SymptomSummary{
			ID:              s.ID,
			Label:           s.Label,
			Description:     s.Description,
			Present:         present,
			InitialQuestion: prompt,
			InitialAnswer:   answer,
			FollowUps:       followUps,
		})
	}

	inf := engine.Infer(responses)
	p.Diagnoses = inf.Diagnoses
	p.Expectations = inf.Expectations
	p.AlternateDiagnoses = inf.AlternateDiagnoses
	return p
}
