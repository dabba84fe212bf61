// api/schemas/mapping.go
package schemas

// FieldDefinition declares how one logical field on a mapped site is
// located and filled. Selectors are ordered by preference.
type FieldDefinition struct {
	Selectors    []string          `json:"selectors"`
	FieldType    string            `json:"field_type"`
	Required     bool              `json:"required"`
	ProfileField string            `json:"profile_field,omitempty"`
	SampleValues []string          `json:"sample_values,omitempty"`
	Options      []string          `json:"options,omitempty"`
	ValueAliases map[string]string `json:"value_aliases,omitempty"`
}

// SiteMapping is a per-origin static document loaded once at startup.
// Field keys within one mapping are unique by construction (JSON object
// keys). The document is immutable during a run.
type SiteMapping struct {
	ID          string                     `json:"id"`
	URL         string                     `json:"url"`
	SiteName    string                     `json:"site_name"`
	FormType    string                     `json:"form_type"`
	Fields      map[string]FieldDefinition `json:"fields"`
	SuccessRate int                        `json:"success_rate"`
	LastTested  string                     `json:"last_tested"`
}

// DiscoveredField is one form control found by dynamic discovery.
type DiscoveredField struct {
	Name         string   `json:"name"`
	Label        string   `json:"label,omitempty"`
	Type         string   `json:"type"`
	Selectors    []string `json:"selectors"`
	Required     bool     `json:"required"`
	SemanticType string   `json:"semantic_type,omitempty"`
	Placeholder  string   `json:"placeholder,omitempty"`
	Options      []string `json:"options,omitempty"`
}

// DiscoveredForm is the per-URL result of dynamic form discovery,
// cached in-process for the run's lifetime.
type DiscoveredForm struct {
	ID             string            `json:"id,omitempty"`
	Action         string            `json:"action,omitempty"`
	Method         string            `json:"method,omitempty"`
	Fields         []DiscoveredField `json:"fields"`
	SubmitSelector string            `json:"submit_selector,omitempty"`
}

// Field returns the discovered field with the given name, or nil.
func (f *DiscoveredForm) Field(name string) *DiscoveredField {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i]
		}
	}
	return nil
}
