package llm

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/resume-parser/constants"
)

// Prompt is the system/user pair for one extraction.
type Prompt struct {
	System string
	User   string
}

const (
	sourceBegin = "<<<RESUME TEXT>>>"
	sourceEnd   = "<<<END RESUME TEXT>>>"
)

// BuildPrompt is pure; sourceText is embedded unchanged.
func BuildPrompt(sourceText string) Prompt {
	return Prompt{
		System: BuildSystemPrompt(),
		User:   BuildUserPrompt(sourceText),
	}
}

// BuildSystemPrompt states the extraction contract.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a resume parser. Return ONLY a single JSON object that matches the provided JSON Schema.",

		// explicit-only extraction
		"Extract ONLY information that is explicitly written in the resume text.",
		"Never infer, guess, embellish, summarize or complete information that is not written.",
		"If a value is not present, use null for nullable fields, an empty string for text fields and an empty array for lists.",
		"Never fill arrays with placeholder or example entries; an absent section is an empty array.",

		// verbatim copying, because values are checked against the source
		"Copy names exactly as written, character for character: company names, institution names, project names, skill names, and the candidate's name, email, phone and location.",
		"Copy dates exactly as written (for example 'Jan 2020' or '2019'); do not reformat them.",
		"Copy responsibilities, achievements and descriptions as written; do not paraphrase.",

		// things models like to invent
		"Never invent skills, technologies, dates, employers, schools, projects or links.",
		"List a skill only if the skill name itself appears in the text.",
		"Set proficiency_level only when the text states a proficiency explicitly; otherwise null.",
		"Skill category MUST be exactly one of: " + strings.Join(constants.SkillCategoriesAsStrings(), ", ") + ".",
		"end_date is null when the role or study is current or no end is written.",

		// formatting hygiene
		"Respond with one JSON object only: no prose, no comments, no markdown code fences.",
		"Use exactly these top-level keys: personal_info, experience, education, projects, skills.",
		fieldCatalogue(),
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt embeds sourceText verbatim between delimiters.
func BuildUserPrompt(sourceText string) string {
	var b strings.Builder
	b.WriteString("Extract the structured profile from the resume text below.\n\n")
	b.WriteString(sourceBegin)
	b.WriteString("\n")
	b.WriteString(sourceText)
	b.WriteString("\n")
	b.WriteString(sourceEnd)
	b.WriteString("\n\nReturn ONLY the JSON object.")
	return b.String()
}

// BuildSchemaMessage renders the profile schema for the model.
func BuildSchemaMessage() string {
	b, _ := json.MarshalIndent(BuildProfileJSONSchema(), "", "  ")
	return "JSON Schema:\n" + string(b)
}

func fieldCatalogue() string {
	return "Fields: personal_info{name, email, phone, location, links{linkedin, github, portfolio}}; " +
		"experience[]{company, role, location, start_date, end_date, description, responsibilities[], achievements[], technologies[]}; " +
		"education[]{institution, degree, field_of_study, location, start_date, end_date, gpa, relevant_coursework[], achievements[], activities[]}; " +
		"projects[]{name, description, project_url, technologies[], key_features[], achievements[], role_responsibilities[]}; " +
		"skills[]{name, category, proficiency_level}."
}
