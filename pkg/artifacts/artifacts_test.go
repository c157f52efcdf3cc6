package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteAndRead(t *testing.T) {
	store := NewStore(t.TempDir())

	path, err := store.Write("team-a", "diagram", "Inventory System", "```plantuml\n@startuml\n@enduml\n```")
	require.NoError(t, err)
	assert.Contains(t, path, "team-a/diagram/inventory-system.md")

	content, err := store.Read(path)
	require.NoError(t, err)
	assert.Contains(t, content, "# Inventory System")
	assert.Contains(t, content, "@startuml")
}

func TestStore_WriteOnce(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Write("team-a", "diagram", "Inventory", "first")
	require.NoError(t, err)

	_, err = store.Write("team-a", "diagram", "Inventory", "second")
	assert.ErrorIs(t, err, ErrArtifactExists)
}

func TestStore_ReadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Read(store.Path("g", "k", "missing"))
	require.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", slugify("Hello, World!"))
	assert.Equal(t, "untitled", slugify("***"))
}
