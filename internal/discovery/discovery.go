// internal/discovery/discovery.go

// Package discovery inspects the live page and derives selectors for
// fields no static mapping covers. Results are cached per URL for the
// lifetime of the run.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
)

// PageSource supplies the serialized document of the current page.
type PageSource interface {
	Content(ctx context.Context) (string, error)
}

// Service discovers form structure from live page HTML.
type Service struct {
	source PageSource
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*schemas.DiscoveredForm
}

// New creates a discovery service reading from the given page.
func New(source PageSource, logger *zap.Logger) *Service {
	return &Service{
		source: source,
		logger: logger.Named("discovery"),
		cache:  make(map[string]*schemas.DiscoveredForm),
	}
}

// SelectorsFor returns candidate selectors for the profile field on
// the page, discovering and caching the form on first use.
func (s *Service) SelectorsFor(ctx context.Context, pageURL, profileField string) ([]string, error) {
	form, err := s.FormFor(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, nil
	}
	return smartSelectors(form, profileField), nil
}

// FormFor returns the discovered form for the URL, parsing the page on
// a cache miss. A page without forms caches and returns nil.
func (s *Service) FormFor(ctx context.Context, pageURL string) (*schemas.DiscoveredForm, error) {
	s.mu.Lock()
	form, ok := s.cache[pageURL]
	s.mu.Unlock()
	if ok {
		return form, nil
	}

	html, err := s.source.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching page content for discovery: %w", err)
	}
	form, err = ParseForm(html)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[pageURL] = form
	s.mu.Unlock()

	if form != nil {
		s.logger.Info("Discovered form",
			zap.String("url", pageURL),
			zap.Int("fields", len(form.Fields)))
	} else {
		s.logger.Debug("No form found on page", zap.String("url", pageURL))
	}
	return form, nil
}

// ParseForm extracts the first form from the document. Returns nil
// when the page has no form.
func ParseForm(html string) (*schemas.DiscoveredForm, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing page HTML: %w", err)
	}

	formSel := doc.Find("form").First()
	if formSel.Length() == 0 {
		return nil, nil
	}

	form := &schemas.DiscoveredForm{
		ID:     formSel.AttrOr("id", ""),
		Action: formSel.AttrOr("action", ""),
		Method: strings.ToUpper(formSel.AttrOr("method", "GET")),
	}

	labels := labelIndex(formSel)

	formSel.Find("input, select, textarea").Each(func(_ int, el *goquery.Selection) {
		inputType := strings.ToLower(el.AttrOr("type", ""))
		if inputType == "hidden" || inputType == "submit" || inputType == "button" {
			return
		}

		name := el.AttrOr("name", "")
		id := el.AttrOr("id", "")
		if name == "" && id == "" {
			return
		}

		field := schemas.DiscoveredField{
			Name:        firstNonEmpty(name, id),
			Type:        controlType(el, inputType),
			Required:    el.AttrOr("required", "\x00absent") != "\x00absent",
			Placeholder: el.AttrOr("placeholder", ""),
			Label:       labels[id],
		}
		if name != "" {
			field.Selectors = append(field.Selectors,
				fmt.Sprintf("%s[name='%s']", goquery.NodeName(el), name))
		}
		if id != "" {
			field.Selectors = append(field.Selectors, "#"+id)
		}
		if goquery.NodeName(el) == "select" {
			el.Find("option").Each(func(_ int, opt *goquery.Selection) {
				if text := strings.TrimSpace(opt.Text()); text != "" {
					field.Options = append(field.Options, text)
				}
			})
		}
		form.Fields = append(form.Fields, field)
	})

	if btn := formSel.Find("button[type='submit'], input[type='submit']").First(); btn.Length() > 0 {
		if id := btn.AttrOr("id", ""); id != "" {
			form.SubmitSelector = "#" + id
		} else {
			form.SubmitSelector = goquery.NodeName(btn) + "[type='submit']"
		}
	}

	return form, nil
}

func labelIndex(form *goquery.Selection) map[string]string {
	labels := make(map[string]string)
	form.Find("label[for]").Each(func(_ int, l *goquery.Selection) {
		if forID := l.AttrOr("for", ""); forID != "" {
			labels[forID] = strings.TrimSpace(l.Text())
		}
	})
	return labels
}

func controlType(el *goquery.Selection, inputType string) string {
	switch goquery.NodeName(el) {
	case "select":
		return "select"
	case "textarea":
		return "textarea"
	}
	if inputType == "" {
		return "text"
	}
	return inputType
}

var flattener = strings.NewReplacer("_", "", "-", "", " ", "")

// smartSelectors matches the form's fields against the profile field
// by name, label, and placeholder, case-insensitively and ignoring
// separator characters.
func smartSelectors(form *schemas.DiscoveredForm, profileField string) []string {
	needle := strings.ToLower(profileField)
	flat := flattener.Replace(needle)

	var out []string
	for i := range form.Fields {
		if fieldMatches(&form.Fields[i], needle, flat) {
			out = append(out, form.Fields[i].Selectors...)
		}
	}
	return out
}

func fieldMatches(f *schemas.DiscoveredField, needle, flat string) bool {
	for _, c := range []string{f.Name, f.Label, f.Placeholder, f.SemanticType} {
		if c == "" {
			continue
		}
		lower := strings.ToLower(c)
		if strings.Contains(lower, needle) {
			return true
		}
		if flat != "" && strings.Contains(flattener.Replace(lower), flat) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
