// internal/mapping/resolver.go
package mapping

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
)

// Discoverer supplies selectors from live-page form discovery. The
// resolver treats it as optional and best-effort.
type Discoverer interface {
	SelectorsFor(ctx context.Context, pageURL, profileField string) ([]string, error)
}

// semanticRules maps a semantic field type to the mapping field names
// it commonly appears under. A profile field matches a rule when its
// lowercased name contains the rule key.
var semanticRules = []struct {
	key    string
	fields []string
}{
	{"firstname", []string{"firstName", "first_name", "fname", "given_name"}},
	{"lastname", []string{"lastName", "last_name", "lname", "family_name", "surname"}},
	{"fullname", []string{"fullName", "full_name", "name", "display_name"}},
	{"email", []string{"email", "emailAddress", "email_address", "mail"}},
	{"phone", []string{"phoneNumber", "phone_number", "tel", "telephone", "mobile"}},
	{"address", []string{"address", "address1", "street", "street_address"}},
	{"city", []string{"city", "locality", "town"}},
	{"state", []string{"state", "region", "province"}},
	{"zip", []string{"zip", "postal_code", "postcode", "zipcode"}},
	{"company", []string{"company", "organization", "employer"}},
	{"password", []string{"password", "pwd", "pass"}},
	{"username", []string{"username", "user_name", "login", "user_id"}},
}

// Resolver turns (page URL, profile field) into an ordered, never
// empty selector list.
type Resolver struct {
	store      *Store
	discoverer Discoverer
	logger     *zap.Logger
}

// NewResolver builds a resolver. discoverer may be nil.
func NewResolver(store *Store, discoverer Discoverer, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:      store,
		discoverer: discoverer,
		logger:     logger.Named("resolver"),
	}
}

// Resolve walks the resolution ladder: static mapping (profile-field
// link, then field key, then semantic synonyms), dynamic discovery,
// and finally the generic fallback patterns. The result is never empty.
func (r *Resolver) Resolve(ctx context.Context, pageURL, profileField string) []string {
	if m := r.store.ForURL(pageURL); m != nil {
		// Explicit profile_field link wins over everything.
		for _, def := range m.Fields {
			if def.ProfileField == profileField && len(def.Selectors) > 0 {
				return def.Selectors
			}
		}
		// Field key match.
		if def, ok := m.Fields[profileField]; ok && len(def.Selectors) > 0 {
			return def.Selectors
		}
		// Semantic synonyms.
		if selectors := semanticMatch(m, profileField); len(selectors) > 0 {
			return selectors
		}
	}

	if r.discoverer != nil {
		selectors, err := r.discoverer.SelectorsFor(ctx, pageURL, profileField)
		if err != nil {
			r.logger.Warn("Dynamic discovery failed",
				zap.String("url", pageURL),
				zap.String("field", profileField),
				zap.Error(err))
		} else if len(selectors) > 0 {
			r.logger.Info("Resolved field via dynamic discovery",
				zap.String("field", profileField),
				zap.Strings("selectors", selectors))
			return selectors
		}
	}

	return fallbackSelectors(profileField)
}

// FieldDefinition returns the mapping definition backing a profile
// field on this URL, if one exists. The dropdown path uses it for
// value aliases and declared options.
func (r *Resolver) FieldDefinition(pageURL, profileField string) *schemas.FieldDefinition {
	m := r.store.ForURL(pageURL)
	if m == nil {
		return nil
	}
	for name, def := range m.Fields {
		if def.ProfileField == profileField || name == profileField {
			d := def
			return &d
		}
	}
	return nil
}

func semanticMatch(m *schemas.SiteMapping, profileField string) []string {
	lower := strings.ToLower(profileField)
	for _, rule := range semanticRules {
		if !strings.Contains(lower, rule.key) {
			continue
		}
		for _, name := range rule.fields {
			if def, ok := m.Fields[name]; ok && len(def.Selectors) > 0 {
				return def.Selectors
			}
		}
	}
	return nil
}

func fallbackSelectors(profileField string) []string {
	return []string{
		fmt.Sprintf("input[name='%s']", profileField),
		fmt.Sprintf("input[id='%s']", profileField),
		fmt.Sprintf("select[name='%s']", profileField),
		fmt.Sprintf("textarea[name='%s']", profileField),
	}
}
