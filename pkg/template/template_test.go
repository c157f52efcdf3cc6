package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	result, err := Render("Hello {{.name}}, section {{.section}}", map[string]any{
		"name":    "Alex",
		"section": 2,
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello Alex, section 2", result)
}

func TestRender_MissingKeyFails(t *testing.T) {
	_, err := Render("Hello {{.missing}}", map[string]any{"name": "Alex"})
	require.Error(t, err)
}

func TestRender_JoinFunc(t *testing.T) {
	result, err := Render(`{{join .items ", "}}`, map[string]any{
		"items": []string{"a", "b", "c"},
	})

	require.NoError(t, err)
	assert.Equal(t, "a, b, c", result)
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{.unclosed", nil)
	require.Error(t, err)
}
