package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropdownKindValid(t *testing.T) {
	kinds := []DropdownKind{
		KindStandardSelect, KindCustomDiv, KindReactComponent, KindVueComponent,
		KindAriaDropdown, KindMultiSelect, KindSearchable, KindCascading,
	}
	for _, k := range kinds {
		assert.True(t, k.Valid(), "expected %q to be valid", k)
	}
	assert.False(t, DropdownKind("FancySelect").Valid())
	assert.False(t, DropdownKind("").Valid())
}

func TestInteractionStrategyValid(t *testing.T) {
	for _, s := range []InteractionStrategy{
		StrategyDirectSelect, StrategyClickToOpen, StrategyKeyboardNavigation,
		StrategyTypeToSearch, StrategyMultiStep,
	} {
		assert.True(t, s.Valid(), "expected %q to be valid", s)
	}
	assert.False(t, InteractionStrategy("GuessAndHope").Valid())
}

func TestDropdownAnalysisNormalize(t *testing.T) {
	t.Run("clamps confidence", func(t *testing.T) {
		a := DropdownAnalysis{
			Kind:       KindStandardSelect,
			Strategy:   StrategyDirectSelect,
			Confidence: 1.7,
		}
		require.NoError(t, a.Normalize())
		assert.Equal(t, 1.0, a.Confidence)

		a.Confidence = -0.2
		require.NoError(t, a.Normalize())
		assert.Equal(t, 0.0, a.Confidence)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		a := DropdownAnalysis{Kind: "Mystery", Strategy: StrategyDirectSelect}
		err := a.Normalize()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Mystery")
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		a := DropdownAnalysis{Kind: KindCustomDiv, Strategy: "Improvise"}
		require.Error(t, a.Normalize())
	})
}

func TestDiscoveredFormField(t *testing.T) {
	form := DiscoveredForm{
		Fields: []DiscoveredField{
			{Name: "email", Type: "email"},
			{Name: "country", Type: "select"},
		},
	}
	require.NotNil(t, form.Field("country"))
	assert.Equal(t, "select", form.Field("country").Type)
	assert.Nil(t, form.Field("missing"))
}
