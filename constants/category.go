package constants

import (
	"strings"
)

type SkillCategory string

const (
	SkillTechnical SkillCategory = "technical"
	SkillSoft      SkillCategory = "soft_skill"
	SkillLanguage  SkillCategory = "language"
	SkillTool      SkillCategory = "tool"
)

var allSkillCategories = []SkillCategory{
	SkillTechnical,
	SkillSoft,
	SkillLanguage,
	SkillTool,
}

func SkillCategoriesAsStrings() []string {
	result := make([]string, len(allSkillCategories))
	for i, cat := range allSkillCategories {
		result[i] = string(cat)
	}
	return result
}

// CanonicalSkillCategory maps loose model output onto the enum.
// Unknown or empty input yields SkillTechnical and false.
func CanonicalSkillCategory(input string) (SkillCategory, bool) {
	if input == "" {
		return SkillTechnical, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	// synonyms map. A bare "languages" group is usually programming languages, so it
	// is left unmapped and defaults to technical.
	synonyms := map[string]SkillCategory{
		"technical_skill":       SkillTechnical,
		"technical_skills":      SkillTechnical,
		"hard_skill":            SkillTechnical,
		"hard_skills":           SkillTechnical,
		"programming":           SkillTechnical,
		"programming_languages": SkillTechnical,
		"soft":                  SkillSoft,
		"soft_skills":           SkillSoft,
		"interpersonal":         SkillSoft,
		"spoken_language":       SkillLanguage,
		"spoken_languages":      SkillLanguage,
		"tools":                 SkillTool,
		"software":              SkillTool,
		"platform":              SkillTool,
		"platforms":             SkillTool,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allSkillCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}

	return SkillTechnical, false
}
