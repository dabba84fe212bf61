// api/schemas/dropdown.go
package schemas

import "fmt"

// DropdownKind classifies the widget family a dropdown belongs to.
// The set is closed; the oracle is instructed to answer with one of
// these exact values.
type DropdownKind string

const (
	KindStandardSelect DropdownKind = "StandardSelect"
	KindCustomDiv      DropdownKind = "CustomDiv"
	KindReactComponent DropdownKind = "ReactComponent"
	KindVueComponent   DropdownKind = "VueComponent"
	KindAriaDropdown   DropdownKind = "AriaDropdown"
	KindMultiSelect    DropdownKind = "MultiSelect"
	KindSearchable     DropdownKind = "SearchableDropdown"
	KindCascading      DropdownKind = "CascadingDropdown"
)

// Valid reports whether the kind is one of the eight known variants.
func (k DropdownKind) Valid() bool {
	switch k {
	case KindStandardSelect, KindCustomDiv, KindReactComponent, KindVueComponent,
		KindAriaDropdown, KindMultiSelect, KindSearchable, KindCascading:
		return true
	}
	return false
}

// InteractionStrategy names how the engine should realize a value inside
// a classified dropdown. The enumeration is closed: every executor must
// handle all five, and MultiStep must never select itself.
type InteractionStrategy string

const (
	StrategyDirectSelect       InteractionStrategy = "DirectSelect"
	StrategyClickToOpen        InteractionStrategy = "ClickToOpen"
	StrategyKeyboardNavigation InteractionStrategy = "KeyboardNavigation"
	StrategyTypeToSearch       InteractionStrategy = "TypeToSearch"
	StrategyMultiStep          InteractionStrategy = "MultiStep"
)

// Valid reports whether the strategy is one of the five known variants.
func (s InteractionStrategy) Valid() bool {
	switch s {
	case StrategyDirectSelect, StrategyClickToOpen, StrategyKeyboardNavigation,
		StrategyTypeToSearch, StrategyMultiStep:
		return true
	}
	return false
}

// DropdownAnalysis is the oracle's structured verdict for one dropdown
// element: what it is, and how to interact with it.
type DropdownAnalysis struct {
	Kind                 DropdownKind        `json:"dropdown_type"`
	Strategy             InteractionStrategy `json:"interaction_strategy"`
	TriggerSelector      string              `json:"trigger_selector,omitempty"`
	OptionsContainer     string              `json:"options_container_selector,omitempty"`
	RequiresScroll       bool                `json:"requires_scroll"`
	IsDynamic            bool                `json:"is_dynamic"`
	Confidence           float64             `json:"confidence"`
	Reasoning            string              `json:"reasoning"`
}

// Normalize clamps the confidence into [0,1] and validates the closed
// enumerations. It returns an error for unknown variants so that a
// malformed oracle response is rejected rather than silently coerced.
func (a *DropdownAnalysis) Normalize() error {
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown dropdown type %q", a.Kind)
	}
	if !a.Strategy.Valid() {
		return fmt.Errorf("unknown interaction strategy %q", a.Strategy)
	}
	a.Confidence = ClampConfidence(a.Confidence)
	return nil
}

// LoadingStrategy describes whether a dropdown loads its options
// asynchronously and how to provoke and detect that loading.
type LoadingStrategy struct {
	HasDynamicLoading bool     `json:"has_dynamic_loading"`
	LoadingIndicators []string `json:"loading_indicators"`
	EstimatedWaitMs   int      `json:"estimated_wait_time"`
	TriggerConditions []string `json:"trigger_conditions"`
}

// FailureAnalysis is the oracle's post-mortem for a failed selection.
// SuggestedFixes are advisory text; only AlternativeSelectors are acted
// on automatically during recovery.
type FailureAnalysis struct {
	LikelyCause          string              `json:"likely_cause"`
	SuggestedFixes       []string            `json:"suggested_fixes"`
	AlternativeSelectors []string            `json:"alternative_selectors"`
	RetryStrategy        InteractionStrategy `json:"retry_strategy"`
	Confidence           float64             `json:"confidence"`
}

// OptionMatch is the oracle's recommendation for which option inside a
// dropdown best matches the user's raw value.
type OptionMatch struct {
	ExactMatch        string   `json:"exact_match,omitempty"`
	FuzzyMatches      []string `json:"fuzzy_matches,omitempty"`
	SemanticMatches   []string `json:"semantic_matches,omitempty"`
	RecommendedOption string   `json:"recommended_option"`
	Confidence        float64  `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
}

// ClampConfidence normalizes a confidence score into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
