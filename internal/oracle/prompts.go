// internal/oracle/prompts.go
package oracle

import "fmt"

func classifyPrompt(elementHTML, surroundingContext string) string {
	return fmt.Sprintf(`Analyze this HTML element and determine what type of dropdown it is and how to interact with it:

Element HTML:
%s

Surrounding context:
%s

Please respond with a JSON object containing:
- "dropdown_type": one of ["StandardSelect", "CustomDiv", "ReactComponent", "VueComponent", "AriaDropdown", "MultiSelect", "SearchableDropdown", "CascadingDropdown"]
- "interaction_strategy": one of ["DirectSelect", "ClickToOpen", "KeyboardNavigation", "TypeToSearch", "MultiStep"]
- "trigger_selector": CSS selector for the element to click to open dropdown (if applicable)
- "options_container_selector": CSS selector for the container holding options (if different from trigger)
- "requires_scroll": boolean indicating if scrolling is needed to see all options
- "is_dynamic": boolean indicating if options load dynamically
- "confidence": number from 0.0 to 1.0 indicating confidence in analysis
- "reasoning": explanation of the analysis

Look for patterns like:
- Standard <select> elements
- Custom divs with role="combobox" or role="listbox"
- React/Vue component patterns (data-* attributes, specific class names)
- ARIA accessibility patterns
- Multi-select indicators
- Search input fields within dropdowns`, elementHTML, surroundingContext)
}

func failurePrompt(pageHTML, dropdownSelector, attemptedValue, errorMessage string) string {
	return fmt.Sprintf(`Analyze why this dropdown selection failed and suggest fixes:

Dropdown selector: %s
Attempted value: %s
Error message: %s

Relevant page HTML:
%s

Please respond with a JSON object containing:
- "likely_cause": string describing the most probable reason for failure
- "suggested_fixes": array of specific actions to try
- "alternative_selectors": array of alternative CSS selectors to try
- "retry_strategy": one of ["DirectSelect", "ClickToOpen", "KeyboardNavigation", "TypeToSearch", "MultiStep"]
- "confidence": number from 0.0 to 1.0

Common failure causes:
- Selector targets wrong element
- Dropdown needs to be opened first
- Options are loaded dynamically
- Value format doesn't match option format
- Timing issues with page loading
- JavaScript event handlers not triggered properly`, dropdownSelector, attemptedValue, errorMessage, pageHTML)
}

func loadingPrompt(pageHTML, dropdownSelector string) string {
	return fmt.Sprintf(`Analyze if this dropdown loads options dynamically and how to detect when loading is complete:

Dropdown selector: %s
Page HTML context:
%s

Please respond with a JSON object containing:
- "has_dynamic_loading": boolean indicating if options load asynchronously
- "loading_indicators": array of selectors or text that indicate loading is in progress
- "estimated_wait_time": estimated milliseconds to wait for loading to complete
- "trigger_conditions": array of actions that trigger option loading (e.g., "click", "focus", "input")

Look for:
- Loading spinners or indicators
- Empty option lists that might populate later
- AJAX/fetch calls in JavaScript
- Event listeners that might trigger loading
- Placeholder text like 'Loading...' or 'Please wait'`, dropdownSelector, pageHTML)
}

func matchPrompt(dropdownHTML, userValue, fieldContext string) string {
	return fmt.Sprintf(`Find the best matching option for this dropdown using advanced semantic understanding:

Field context: %s
User wants to enter: '%s'
Dropdown HTML: %s

Please respond with a JSON object containing:
- "exact_match": the option that matches exactly (if any)
- "fuzzy_matches": array of options that partially match
- "semantic_matches": array of options that match semantically (e.g., 'USA' for 'United States')
- "recommended_option": the single best option to select
- "confidence": number from 0.0 to 1.0
- "reasoning": detailed explanation of the matching logic

Consider these matching strategies:
1. Exact text match (case insensitive)
2. Exact value attribute match
3. Partial text matching
4. Common abbreviations (CA -> California, US -> United States, etc.)
5. Synonyms and alternate names
6. Language variations
7. Context-based matching (e.g., if field is 'country', prefer country names)`, fieldContext, userValue, dropdownHTML)
}
