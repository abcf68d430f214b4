package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/resume-parser/constants"
)

var topSynonyms = map[string]string{
	"personalInfo":    "personal_info",
	"personal":        "personal_info",
	"contact":         "personal_info",
	"contact_info":    "personal_info",
	"work_experience": "experience",
	"experiences":     "experience",
	"work":            "experience",
	"employment":      "experience",
	"educations":      "education",
	"project":         "projects",
	"skill":           "skills",
}

var topKeys = map[string]struct{}{
	"personal_info": {}, "experience": {}, "education": {}, "projects": {}, "skills": {},
}

// NormalizeProfileMap repairs shape drift in a decoded completion:
//   - renames known synonyms (experiences -> experience)
//   - hoists stray personal fields and links into personal_info
//   - wraps single objects and single strings into arrays
//   - turns plain-string and grouped skills into skill entries
//   - coerces numbers to strings and "null"/"N/A" to null
//   - removes unknown keys
//
// Values are only trimmed, never rewritten. The returned notes list every repair.
func NormalizeProfileMap(m map[string]any) (map[string]any, []string) {
	n := &mapNormalizer{}

	for _, from := range slices.Sorted(maps.Keys(topSynonyms)) {
		n.rename(m, "", from, topSynonyms[from])
	}

	out := map[string]any{
		"personal_info": n.personal(m),
		"experience":    n.section("experience", m["experience"], experienceShape),
		"education":     n.section("education", m["education"], educationShape),
		"projects":      n.section("projects", m["projects"], projectShape),
		"skills":        n.skills(m["skills"]),
	}

	for _, k := range slices.Sorted(maps.Keys(m)) {
		if _, ok := topKeys[k]; !ok {
			n.note(k + "(unknown)")
		}
	}
	return out, n.notes
}

type mapNormalizer struct {
	notes []string
}

func (n *mapNormalizer) note(s string) {
	n.notes = append(n.notes, s)
}

// rename moves m[from] to m[to] unless m[to] already exists; from is always removed.
func (n *mapNormalizer) rename(m map[string]any, path, from, to string) {
	v, ok := m[from]
	if !ok {
		return
	}
	delete(m, from)
	if _, exists := m[to]; exists {
		n.note(path + from + "(duplicate)")
		return
	}
	m[to] = v
	n.note(path + from + "->" + to)
}

func (n *mapNormalizer) personal(m map[string]any) map[string]any {
	var pi map[string]any
	switch v := m["personal_info"].(type) {
	case map[string]any:
		pi = v
	case []any:
		if len(v) > 0 {
			if first, ok := v[0].(map[string]any); ok {
				pi = first
				n.note("personal_info(unwrapped)")
			}
		}
	case nil:
	default:
		n.note("personal_info(type)")
	}
	if pi == nil {
		pi = map[string]any{}
	}

	// fields the model put at the top level
	for _, k := range append(append([]string{}, personalFields...), append(linkFields, "links")...) {
		if v, ok := m[k]; ok {
			delete(m, k)
			if _, exists := pi[k]; !exists {
				pi[k] = v
				n.note(k + "->personal_info." + k)
			}
		}
	}

	links, _ := pi["links"].(map[string]any)
	if links == nil {
		if _, present := pi["links"]; present && pi["links"] != nil {
			n.note("personal_info.links(type)")
		}
		links = map[string]any{}
	}
	n.rename(links, "personal_info.links.", "website", "portfolio")
	for _, k := range append(linkFields, "website") {
		if v, ok := pi[k]; ok {
			to := k
			if k == "website" {
				to = "portfolio"
			}
			if _, exists := links[to]; !exists {
				links[to] = v
				n.note("personal_info." + k + "->personal_info.links." + to)
			}
		}
	}

	out := map[string]any{}
	for _, k := range personalFields {
		out[k] = n.text("personal_info."+k, pi[k])
	}
	outLinks := map[string]any{}
	for _, k := range linkFields {
		outLinks[k] = n.nullableText("personal_info.links."+k, links[k])
	}
	out["links"] = outLinks
	return out
}

func (n *mapNormalizer) section(name string, raw any, shape entryShape) []any {
	var items []any
	switch v := raw.(type) {
	case nil:
		return []any{}
	case map[string]any:
		n.note(name + "(wrapped)")
		items = []any{v}
	case []any:
		items = v
	default:
		n.note(name + "(type)")
		return []any{}
	}

	out := make([]any, 0, len(items))
	for i, it := range items {
		path := fmt.Sprintf("%s[%d]", name, i)
		em, ok := it.(map[string]any)
		if !ok {
			n.note(path + "(type)")
			continue
		}
		out = append(out, n.entry(path, em, shape))
	}
	return out
}

func (n *mapNormalizer) entry(path string, em map[string]any, shape entryShape) map[string]any {
	for _, from := range slices.Sorted(maps.Keys(shape.synonyms)) {
		n.rename(em, path+".", from, shape.synonyms[from])
	}
	e := map[string]any{}
	for _, k := range shape.strings {
		e[k] = n.text(path+"."+k, em[k])
	}
	for _, k := range shape.nullable {
		e[k] = n.nullableText(path+"."+k, em[k])
	}
	for _, k := range shape.lists {
		e[k] = n.list(path+"."+k, em[k])
	}
	return e
}

func (n *mapNormalizer) skills(raw any) []any {
	type pending struct {
		item     any
		category string
	}
	var items []pending

	switch v := raw.(type) {
	case nil:
		return []any{}
	case []any:
		for _, it := range v {
			items = append(items, pending{item: it})
		}
	case string:
		n.note("skills(wrapped)")
		items = append(items, pending{item: v})
	case map[string]any:
		if _, single := v["name"]; single {
			n.note("skills(wrapped)")
			items = append(items, pending{item: v})
			break
		}
		// {"languages": ["Go"], "tools": ["Docker"]}
		n.note("skills(grouped)")
		for _, group := range slices.Sorted(maps.Keys(v)) {
			switch list := v[group].(type) {
			case []any:
				for _, it := range list {
					items = append(items, pending{item: it, category: group})
				}
			case string:
				items = append(items, pending{item: list, category: group})
			default:
				n.note("skills." + group + "(type)")
			}
		}
	default:
		n.note("skills(type)")
		return []any{}
	}

	out := make([]any, 0, len(items))
	for i, p := range items {
		path := fmt.Sprintf("skills[%d]", i)
		var em map[string]any
		switch t := p.item.(type) {
		case string:
			name := strings.TrimSpace(t)
			if name == "" {
				continue
			}
			em = map[string]any{"name": name}
		case map[string]any:
			em = t
		default:
			n.note(path + "(type)")
			continue
		}
		e := n.entry(path, em, skillShape)
		cat, _ := e["category"].(string)
		if cat == "" {
			cat = p.category
		}
		canon, ok := constants.CanonicalSkillCategory(cat)
		if !ok {
			n.note(path + ".category(defaulted)")
		}
		e["category"] = string(canon)
		out = append(out, e)
	}
	return out
}

func (n *mapNormalizer) text(path string, v any) string {
	s, ok := scalarString(v)
	if !ok {
		n.note(path + "(type)")
		return ""
	}
	if isNullish(s) {
		return ""
	}
	return s
}

func (n *mapNormalizer) nullableText(path string, v any) any {
	s, ok := scalarString(v)
	if !ok {
		n.note(path + "(type)")
		return nil
	}
	if s == "" || isNullish(s) {
		return nil
	}
	return s
}

func (n *mapNormalizer) list(path string, v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for i, el := range t {
			s, ok := scalarString(el)
			if !ok {
				n.note(fmt.Sprintf("%s[%d](type)", path, i))
				continue
			}
			if s == "" || isNullish(s) {
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		s, ok := scalarString(t)
		if !ok {
			n.note(path + "(type)")
			return []string{}
		}
		if s == "" || isNullish(s) {
			return []string{}
		}
		n.note(path + "(wrapped)")
		return []string{s}
	}
}

// scalarString converts JSON scalars to trimmed text. Objects and arrays are not scalars.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func isNullish(s string) bool {
	return strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") || strings.EqualFold(s, "none")
}
