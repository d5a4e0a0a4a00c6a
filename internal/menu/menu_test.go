package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	table := map[string]Entry{
		"HOME": {
			Prompt: "Choose an option:",
			Options: map[string]Option{
				"1": {Label: "Balance", Next: "BALANCE"},
				"2": {Label: "Transfer", Next: "TRANSFER"},
			},
		},
	}
	return NewRegistry(table, []string{"HOME", "BALANCE", "TRANSFER"})
}

func TestResolveByToken(t *testing.T) {
	r := testRegistry()

	next, ok := r.Resolve("HOME", "1")
	require.True(t, ok)
	assert.Equal(t, "BALANCE", next)
}

func TestResolveByLabelCaseInsensitive(t *testing.T) {
	r := testRegistry()

	next, ok := r.Resolve("HOME", "  tRaNsFeR ")
	require.True(t, ok)
	assert.Equal(t, "TRANSFER", next)
}

func TestResolveNoMatch(t *testing.T) {
	r := testRegistry()

	_, ok := r.Resolve("HOME", "9")
	assert.False(t, ok)

	_, ok = r.Resolve("HOME", "")
	assert.False(t, ok)

	_, ok = r.Resolve("UNKNOWN", "1")
	assert.False(t, ok)
}

func TestRenderListsOptionsInTokenOrder(t *testing.T) {
	r := testRegistry()

	assert.Equal(t, "Choose an option:\n1. Balance\n2. Transfer", r.Render("HOME"))
}

func TestRenderInvalidPrefixes(t *testing.T) {
	r := testRegistry()

	assert.Equal(t, "Invalid selection.\nChoose an option:\n1. Balance\n2. Transfer", r.RenderInvalid("HOME"))
}

func TestValidateAcceptsWellFormedTable(t *testing.T) {
	assert.NoError(t, testRegistry().Validate())
}

func TestValidateRejectsUnknownTarget(t *testing.T) {
	table := map[string]Entry{
		"HOME": {
			Prompt:  "Choose:",
			Options: map[string]Option{"1": {Label: "Ghost", Next: "NOWHERE"}},
		},
	}
	r := NewRegistry(table, []string{"HOME"})

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown state")
}

func TestValidateRejectsEmptyMenu(t *testing.T) {
	table := map[string]Entry{
		"HOME": {Prompt: "Choose:"},
	}
	r := NewRegistry(table, []string{"HOME"})

	assert.Error(t, r.Validate())
}
