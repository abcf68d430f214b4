package entity

// ExtractedProfile is the structured candidate record built from one resume.
// Field names are part of the wire contract; do not rename the json tags.
type ExtractedProfile struct {
	PersonalInfo PersonalInfo      `json:"personal_info"`
	Experience   []ExperienceEntry `json:"experience"`
	Education    []EducationEntry  `json:"education"`
	Projects     []ProjectEntry    `json:"projects"`
	Skills       []SkillEntry      `json:"skills"`
}

// PersonalInfo holds contact details. Empty string means absent.
type PersonalInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Links    Links  `json:"links"`
}

type Links struct {
	LinkedIn  *string `json:"linkedin"`
	GitHub    *string `json:"github"`
	Portfolio *string `json:"portfolio"`
}

type ExperienceEntry struct {
	Company          string   `json:"company"`
	Role             string   `json:"role"`
	Location         string   `json:"location"`
	StartDate        string   `json:"start_date"`
	EndDate          *string  `json:"end_date"` // nil means current
	Description      string   `json:"description"`
	Responsibilities []string `json:"responsibilities"`
	Achievements     []string `json:"achievements"`
	Technologies     []string `json:"technologies"`
}

type EducationEntry struct {
	Institution        string   `json:"institution"`
	Degree             string   `json:"degree"`
	FieldOfStudy       string   `json:"field_of_study"`
	Location           string   `json:"location"`
	StartDate          string   `json:"start_date"`
	EndDate            *string  `json:"end_date"`
	GPA                *string  `json:"gpa"`
	RelevantCoursework []string `json:"relevant_coursework"`
	Achievements       []string `json:"achievements"`
	Activities         []string `json:"activities"`
}

type ProjectEntry struct {
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	ProjectURL           *string  `json:"project_url"`
	Technologies         []string `json:"technologies"`
	KeyFeatures          []string `json:"key_features"`
	Achievements         []string `json:"achievements"`
	RoleResponsibilities []string `json:"role_responsibilities"`
}

type SkillEntry struct {
	Name             string  `json:"name"`
	Category         string  `json:"category"` // technical | soft_skill | language | tool
	ProficiencyLevel *string `json:"proficiency_level"`
}

// Normalize replaces nil slices with empty ones so that absence serializes as [].
func (p *ExtractedProfile) Normalize() {
	p.Experience = orEmpty(p.Experience)
	p.Education = orEmpty(p.Education)
	p.Projects = orEmpty(p.Projects)
	p.Skills = orEmpty(p.Skills)
	for i := range p.Experience {
		e := &p.Experience[i]
		e.Responsibilities = orEmpty(e.Responsibilities)
		e.Achievements = orEmpty(e.Achievements)
		e.Technologies = orEmpty(e.Technologies)
	}
	for i := range p.Education {
		e := &p.Education[i]
		e.RelevantCoursework = orEmpty(e.RelevantCoursework)
		e.Achievements = orEmpty(e.Achievements)
		e.Activities = orEmpty(e.Activities)
	}
	for i := range p.Projects {
		e := &p.Projects[i]
		e.Technologies = orEmpty(e.Technologies)
		e.KeyFeatures = orEmpty(e.KeyFeatures)
		e.Achievements = orEmpty(e.Achievements)
		e.RoleResponsibilities = orEmpty(e.RoleResponsibilities)
	}
}

// Clone returns a deep copy; validators filter the copy and leave the input untouched.
func (p ExtractedProfile) Clone() ExtractedProfile {
	out := ExtractedProfile{
		PersonalInfo: p.PersonalInfo,
		Experience:   make([]ExperienceEntry, len(p.Experience)),
		Education:    make([]EducationEntry, len(p.Education)),
		Projects:     make([]ProjectEntry, len(p.Projects)),
		Skills:       make([]SkillEntry, len(p.Skills)),
	}
	out.PersonalInfo.Links = Links{
		LinkedIn:  clonePtr(p.PersonalInfo.Links.LinkedIn),
		GitHub:    clonePtr(p.PersonalInfo.Links.GitHub),
		Portfolio: clonePtr(p.PersonalInfo.Links.Portfolio),
	}
	for i, e := range p.Experience {
		e.EndDate = clonePtr(e.EndDate)
		e.Responsibilities = cloneSlice(e.Responsibilities)
		e.Achievements = cloneSlice(e.Achievements)
		e.Technologies = cloneSlice(e.Technologies)
		out.Experience[i] = e
	}
	for i, e := range p.Education {
		e.EndDate = clonePtr(e.EndDate)
		e.GPA = clonePtr(e.GPA)
		e.RelevantCoursework = cloneSlice(e.RelevantCoursework)
		e.Achievements = cloneSlice(e.Achievements)
		e.Activities = cloneSlice(e.Activities)
		out.Education[i] = e
	}
	for i, e := range p.Projects {
		e.ProjectURL = clonePtr(e.ProjectURL)
		e.Technologies = cloneSlice(e.Technologies)
		e.KeyFeatures = cloneSlice(e.KeyFeatures)
		e.Achievements = cloneSlice(e.Achievements)
		e.RoleResponsibilities = cloneSlice(e.RoleResponsibilities)
		out.Projects[i] = e
	}
	for i, s := range p.Skills {
		s.ProficiencyLevel = clonePtr(s.ProficiencyLevel)
		out.Skills[i] = s
	}
	return out
}

// IsEmpty reports whether nothing survived: no contact scalars and no entries.
func (p ExtractedProfile) IsEmpty() bool {
	pi := p.PersonalInfo
	return pi.Name == "" && pi.Email == "" && pi.Phone == "" && pi.Location == "" &&
		len(p.Experience) == 0 && len(p.Education) == 0 && len(p.Projects) == 0 && len(p.Skills) == 0
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func cloneSlice(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
