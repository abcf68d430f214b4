// Package provenance removes extracted facts that cannot be found in the source text.
package provenance

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/textnorm"
)

type Mode string

const (
	// ModeKeyOnly gates entries on their identifying key; kept entries pass through whole.
	// Sibling fields are not checked, so an invented achievement under a real employer survives.
	ModeKeyOnly Mode = "key_only"
	// ModeStrict additionally blanks unverified scalar sub-fields and filters list items.
	ModeStrict Mode = "strict"
)

// ParseMode accepts "", key_only and strict (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeKeyOnly:
		return ModeKeyOnly, nil
	case ModeStrict:
		return ModeStrict, nil
	}
	return "", common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown provenance mode %q", s), common.ErrInvalidInput)
}

// Validator is stateless and safe for concurrent use.
type Validator struct {
	Mode       Mode
	Normalizer textnorm.Normalizer
	Logger     *slog.Logger
}

func New(mode Mode, n textnorm.Normalizer, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = ModeKeyOnly
	}
	return &Validator{Mode: mode, Normalizer: n, Logger: logger}
}

// Validate returns a filtered copy of profile and the manifest of what was removed.
// The input is not modified. Removing everything is still a valid result.
func (v *Validator) Validate(profile entity.ExtractedProfile, source string) (entity.ExtractedProfile, []entity.DroppedField) {
	c := &check{
		src:    v.Normalizer.NewSource(source),
		strict: v.Mode == ModeStrict,
		logger: v.logger(),
	}
	out := profile.Clone()

	pi := &out.PersonalInfo
	pi.Name = c.scalar("personal_info.name", pi.Name)
	pi.Email = c.scalar("personal_info.email", pi.Email)
	pi.Phone = c.scalar("personal_info.phone", pi.Phone)
	pi.Location = c.scalar("personal_info.location", pi.Location)
	c.links(pi.Links)

	out.Experience = keep(c, "experience", out.Experience, func(e entity.ExperienceEntry) string { return e.Company },
		func(p string, e *entity.ExperienceEntry) {
			e.Role = c.scalar(p+".role", e.Role)
			e.Location = c.scalar(p+".location", e.Location)
			e.Responsibilities = c.list(p+".responsibilities", e.Responsibilities)
			e.Achievements = c.list(p+".achievements", e.Achievements)
			e.Technologies = c.list(p+".technologies", e.Technologies)
		})
	out.Education = keep(c, "education", out.Education, func(e entity.EducationEntry) string { return e.Institution },
		func(p string, e *entity.EducationEntry) {
			e.Degree = c.scalar(p+".degree", e.Degree)
			e.FieldOfStudy = c.scalar(p+".field_of_study", e.FieldOfStudy)
			e.Location = c.scalar(p+".location", e.Location)
			e.RelevantCoursework = c.list(p+".relevant_coursework", e.RelevantCoursework)
			e.Achievements = c.list(p+".achievements", e.Achievements)
			e.Activities = c.list(p+".activities", e.Activities)
		})
	out.Projects = keep(c, "projects", out.Projects, func(e entity.ProjectEntry) string { return e.Name },
		func(p string, e *entity.ProjectEntry) {
			e.Technologies = c.list(p+".technologies", e.Technologies)
			e.KeyFeatures = c.list(p+".key_features", e.KeyFeatures)
			e.Achievements = c.list(p+".achievements", e.Achievements)
			e.RoleResponsibilities = c.list(p+".role_responsibilities", e.RoleResponsibilities)
		})
	out.Skills = keep(c, "skills", out.Skills, func(e entity.SkillEntry) string { return e.Name }, nil)

	out.Normalize()
	c.logger.Debug("provenance.done",
		"mode", string(v.Mode),
		"dropped", len(c.dropped),
		"experience", len(out.Experience),
		"education", len(out.Education),
		"projects", len(out.Projects),
		"skills", len(out.Skills),
	)
	return out, c.dropped
}

func (v *Validator) logger() *slog.Logger {
	if v.Logger == nil {
		return slog.Default()
	}
	return v.Logger
}

type check struct {
	src     textnorm.Source
	strict  bool
	logger  *slog.Logger
	dropped []entity.DroppedField
}

func (c *check) drop(field, value, reason string) {
	c.dropped = append(c.dropped, entity.DroppedField{Field: field, Value: value, Reason: reason})
	c.logger.Warn("provenance.drop", "field", field, "value", value, "reason", reason)
}

// scalar blanks a non-empty value that is not in the source. Empty values stay empty.
func (c *check) scalar(field, value string) string {
	if value == "" || c.src.Contains(value) {
		return value
	}
	c.drop(field, value, entity.DropNotInSource)
	return ""
}

// list filters unverified items in strict mode only.
func (c *check) list(field string, items []string) []string {
	if !c.strict {
		return items
	}
	out := make([]string, 0, len(items))
	for i, s := range items {
		if c.src.Contains(s) {
			out = append(out, s)
			continue
		}
		c.drop(fmt.Sprintf("%s[%d]", field, i), s, entity.DropNotInSource)
	}
	return out
}

func (c *check) links(l entity.Links) {
	for name, p := range map[string]*string{"linkedin": l.LinkedIn, "github": l.GitHub, "portfolio": l.Portfolio} {
		if p != nil {
			c.logger.Debug("provenance.link.unverified", "field", "personal_info.links."+name, "value", *p)
		}
	}
}

// keep drops entries whose key is empty or absent from the source. In strict mode the
// sub-fields of kept entries are checked by sub.
func keep[T any](c *check, section string, entries []T, key func(T) string, sub func(path string, e *T)) []T {
	out := make([]T, 0, len(entries))
	for i, e := range entries {
		path := fmt.Sprintf("%s[%d]", section, i)
		k := key(e)
		keyField := path + "." + keyName(section)
		if strings.TrimSpace(k) == "" {
			c.drop(keyField, k, entity.DropEmptyKey)
			continue
		}
		if !c.src.Contains(k) {
			c.drop(keyField, k, entity.DropNotInSource)
			continue
		}
		if c.strict && sub != nil {
			sub(path, &e)
		}
		out = append(out, e)
	}
	return out
}

func keyName(section string) string {
	switch section {
	case "experience":
		return "company"
	case "education":
		return "institution"
	default:
		return "name"
	}
}
