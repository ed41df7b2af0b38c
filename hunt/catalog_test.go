package hunt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_EntityLookup(t *testing.T) {
	catalog := NewCatalog([]Entity{
		{Name: "Incidents", Columns: []Column{{Name: "id", Type: "string"}}},
		{Name: "alerts", Columns: []Column{{Name: "rule", Type: "string"}}},
	})

	assert.True(t, catalog.HasEntity("incidents"))
	assert.True(t, catalog.HasEntity("INCIDENTS"))
	assert.True(t, catalog.HasEntity("  alerts  "))
	assert.False(t, catalog.HasEntity("logins"))

	entity, ok := catalog.Entity("incidents")
	require.True(t, ok)
	assert.Equal(t, "Incidents", entity.Name)

	entities := catalog.Entities()
	require.Len(t, entities, 2)
	assert.Equal(t, "Incidents", entities[0].Name)
	assert.Equal(t, "alerts", entities[1].Name)
}

func TestCatalog_DuplicateEntitiesKeepFirst(t *testing.T) {
	catalog := NewCatalog([]Entity{
		{Name: "incidents", Columns: []Column{{Name: "first"}}},
		{Name: "Incidents", Columns: []Column{{Name: "second"}}},
	})

	entity, ok := catalog.Entity("incidents")
	require.True(t, ok)
	require.Len(t, entity.Columns, 1)
	assert.Equal(t, "first", entity.Columns[0].Name)
	assert.Len(t, catalog.Entities(), 1)
}

func TestCatalog_ColumnNamesSorted(t *testing.T) {
	catalog := NewCatalog([]Entity{
		{Name: "incidents", Columns: []Column{
			{Name: "severity"}, {Name: "id"}, {Name: "owner"},
		}},
	})

	assert.Equal(t, []string{"id", "owner", "severity"}, catalog.ColumnNames("incidents"))
	assert.Nil(t, catalog.ColumnNames("missing"))
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	require.True(t, catalog.HasEntity(DefaultEntityName))
	columns := catalog.ColumnNames(DefaultEntityName)
	assert.Contains(t, columns, "owner")
	assert.Contains(t, columns, "severity")
	assert.Contains(t, columns, "mitre_technique")
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `entities:
  - name: incidents
    columns:
      - name: id
        type: string
        description: Incident identifier
      - name: severity
        type: string
        description: Severity level
  - name: alerts
    columns:
      - name: rule
        type: string
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.True(t, catalog.HasEntity("incidents"))
	assert.True(t, catalog.HasEntity("alerts"))
	assert.Equal(t, []string{"id", "severity"}, catalog.ColumnNames("incidents"))
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("entities: []\n"), 0644))
	_, err = LoadCatalog(empty)
	require.Error(t, err)

	malformed := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("entities: [\n"), 0644))
	_, err = LoadCatalog(malformed)
	require.Error(t, err)
}
