package hunt

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Column describes one queryable column of an entity.
type Column struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
}

// Entity describes one queryable entity (table) exposed to the hunt language.
type Entity struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// Catalog is the read-only data dictionary of queryable entities.
// It is loaded once at startup and injected into the translator and advisor;
// it is used for source-entity resolution and for documentation surfaced to
// the caller, never for type-checking translated queries.
type Catalog struct {
	entities map[string]Entity
	order    []string
}

// NewCatalog builds a catalog from entity definitions. Entity lookup is
// case-insensitive.
func NewCatalog(entities []Entity) *Catalog {
	c := &Catalog{entities: make(map[string]Entity, len(entities))}
	for _, e := range entities {
		key := strings.ToLower(e.Name)
		if _, dup := c.entities[key]; dup {
			continue
		}
		c.entities[key] = e
		c.order = append(c.order, key)
	}
	return c
}

// LoadCatalog reads entity definitions from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var doc struct {
		Entities []Entity `yaml:"entities"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(doc.Entities) == 0 {
		return nil, fmt.Errorf("catalog file %s defines no entities", path)
	}

	return NewCatalog(doc.Entities), nil
}

// HasEntity reports whether the catalog knows the named entity.
func (c *Catalog) HasEntity(name string) bool {
	_, ok := c.entities[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Entity returns the named entity definition.
func (c *Catalog) Entity(name string) (Entity, bool) {
	e, ok := c.entities[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// Entities returns all entity definitions in registration order.
func (c *Catalog) Entities() []Entity {
	out := make([]Entity, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entities[key])
	}
	return out
}

// ColumnNames returns the sorted column names of the named entity.
// Used by the advisor when suggesting fixes for missing-column errors.
func (c *Catalog) ColumnNames(entity string) []string {
	e, ok := c.Entity(entity)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(e.Columns))
	for _, col := range e.Columns {
		names = append(names, col.Name)
	}
	sort.Strings(names)
	return names
}

// DefaultEntityName is the single queryable entity used when the pipe form's
// leading segment cannot be resolved against the catalog.
const DefaultEntityName = "incidents"

// DefaultCatalog returns the built-in data dictionary for the incidents
// entity. Deployments can override it with a YAML catalog file.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Entity{
		{
			Name: DefaultEntityName,
			Columns: []Column{
				{Name: "id", Type: "string", Description: "Incident identifier"},
				{Name: "owner", Type: "string", Description: "Owning tenant principal"},
				{Name: "title", Type: "string", Description: "Short incident title"},
				{Name: "description", Type: "string", Description: "Analyst-facing incident summary"},
				{Name: "severity", Type: "string", Description: "Severity level: low, medium, high, critical"},
				{Name: "status", Type: "string", Description: "Lifecycle status: open, triaged, resolved, closed"},
				{Name: "category", Type: "string", Description: "Classification category assigned at ingest"},
				{Name: "confidence", Type: "float", Description: "Classifier confidence between 0 and 1"},
				{Name: "source_ip", Type: "string", Description: "Source IP extracted from the submitted log"},
				{Name: "dest_ip", Type: "string", Description: "Destination IP extracted from the submitted log"},
				{Name: "hostname", Type: "string", Description: "Affected host"},
				{Name: "username", Type: "string", Description: "Account referenced by the log data"},
				{Name: "ioc_type", Type: "string", Description: "Indicator of compromise type: hash, ip, domain, url"},
				{Name: "ioc_value", Type: "string", Description: "Indicator of compromise value"},
				{Name: "mitre_technique", Type: "string", Description: "Mapped MITRE ATT&CK technique ID"},
				{Name: "raw_log", Type: "string", Description: "Original submitted log excerpt"},
				{Name: "created_at", Type: "datetime", Description: "Incident creation time"},
				{Name: "updated_at", Type: "datetime", Description: "Last modification time"},
			},
		},
	})
}
