package llm

import "github.com/joseph-ayodele/resume-parser/constants"

// entryShape lists the keys of one section entry by kind. It drives both the JSON Schema
// and the lenient normalization pass so the two cannot drift apart.
type entryShape struct {
	key      string   // identifying field
	strings  []string // plain text, "" when absent
	nullable []string // text or null
	lists    []string // arrays of text
	synonyms map[string]string
}

var (
	personalFields = []string{"name", "email", "phone", "location"}
	linkFields     = []string{"linkedin", "github", "portfolio"}

	experienceShape = entryShape{
		key:      "company",
		strings:  []string{"company", "role", "location", "start_date", "description"},
		nullable: []string{"end_date"},
		lists:    []string{"responsibilities", "achievements", "technologies"},
		synonyms: map[string]string{
			"employer": "company", "organization": "company", "title": "role", "position": "role",
			"job_title": "role", "start": "start_date", "end": "end_date", "tech_stack": "technologies",
		},
	}
	educationShape = entryShape{
		key:      "institution",
		strings:  []string{"institution", "degree", "field_of_study", "location", "start_date"},
		nullable: []string{"end_date", "gpa"},
		lists:    []string{"relevant_coursework", "achievements", "activities"},
		synonyms: map[string]string{
			"school": "institution", "university": "institution", "major": "field_of_study",
			"field": "field_of_study", "coursework": "relevant_coursework", "start": "start_date", "end": "end_date",
		},
	}
	projectShape = entryShape{
		key:      "name",
		strings:  []string{"name", "description"},
		nullable: []string{"project_url"},
		lists:    []string{"technologies", "key_features", "achievements", "role_responsibilities"},
		synonyms: map[string]string{
			"title": "name", "url": "project_url", "link": "project_url", "features": "key_features",
			"responsibilities": "role_responsibilities", "tech_stack": "technologies",
		},
	}
	skillShape = entryShape{
		key:      "name",
		strings:  []string{"name", "category"},
		nullable: []string{"proficiency_level"},
		synonyms: map[string]string{
			"skill": "name", "type": "category", "level": "proficiency_level", "proficiency": "proficiency_level",
		},
	}
)

// BuildProfileJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the model as a structured output hint and also use it locally to validate.
func BuildProfileJSONSchema() map[string]any {
	links := objectOf(nil, linkFields, nil, nil)
	personal := objectOf(personalFields, nil, nil, map[string]any{"links": links})

	skills := objectOf(nil, skillShape.nullable, nil, map[string]any{
		"name":     stringProp(),
		"category": map[string]any{"type": "string", "enum": constants.SkillCategoriesAsStrings()},
	})

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"personal_info": personal,
			"experience":    arrayOf(shapeSchema(experienceShape)),
			"education":     arrayOf(shapeSchema(educationShape)),
			"projects":      arrayOf(shapeSchema(projectShape)),
			"skills":        arrayOf(skills),
		},
	}
}

// envelopeSchema is the minimum a completion must satisfy before any repair is attempted.
func envelopeSchema() map[string]any {
	return map[string]any{"type": "object"}
}

func shapeSchema(s entryShape) map[string]any {
	return objectOf(s.strings, s.nullable, s.lists, nil)
}

func objectOf(strs, nullable, lists []string, extra map[string]any) map[string]any {
	props := map[string]any{}
	for _, k := range strs {
		props[k] = stringProp()
	}
	for _, k := range nullable {
		props[k] = map[string]any{"type": []string{"string", "null"}}
	}
	for _, k := range lists {
		props[k] = arrayOf(stringProp())
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

func stringProp() map[string]any {
	return map[string]any{"type": "string"}
}

func arrayOf(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}
