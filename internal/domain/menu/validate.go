package menu

import (
	"fmt"
)

// ValidationError describes why a catalog entry was rejected.
type ValidationError struct {
	Kind   string // "item" or "table"
	ID     int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s", e.Kind, e.ID, e.Reason)
}

// ValidateItem checks that an item has a known category and a non-empty set
// of uniquely named variants priced in non-negative whole rupees.
func ValidateItem(m MenuItem) error {
	fail := func(reason string) error {
		return &ValidationError{Kind: "item", ID: m.ID, Reason: reason}
	}
	if m.Name == "" {
		return fail("name is required")
	}
	if !m.Category.Valid() {
		return fail(fmt.Sprintf("unknown category %q", m.Category))
	}
	if len(m.Variants) == 0 {
		return fail("at least one variant is required")
	}
	seen := make(map[string]struct{}, len(m.Variants))
	for _, v := range m.Variants {
		if v.Name == "" {
			return fail("variant name is required")
		}
		if _, dup := seen[v.Name]; dup {
			return fail(fmt.Sprintf("duplicate variant %q", v.Name))
		}
		seen[v.Name] = struct{}{}
		if v.Price.IsNegative() {
			return fail(fmt.Sprintf("variant %q has negative price", v.Name))
		}
		if !v.Price.Equal(v.Price.Truncate(0)) {
			return fail(fmt.Sprintf("variant %q price must be whole rupees", v.Name))
		}
	}
	return nil
}

// ValidateTable checks a table definition. The takeaway identifier is reserved.
func ValidateTable(t Table) error {
	fail := func(reason string) error {
		return &ValidationError{Kind: "table", ID: t.ID, Reason: reason}
	}
	if t.ID == TakeawayID {
		return fail("identifier is reserved for takeaway")
	}
	if t.Name == "" {
		return fail("name is required")
	}
	if t.Capacity <= 0 {
		return fail("capacity must be greater than 0")
	}
	if !t.Status.Valid() {
		return fail(fmt.Sprintf("unknown status %q", t.Status))
	}
	return nil
}

// Validate checks every item and table and rejects duplicate identifiers.
func (c Catalog) Validate() error {
	items := make(map[int]struct{}, len(c.Items))
	for _, m := range c.Items {
		if err := ValidateItem(m); err != nil {
			return err
		}
		if _, dup := items[m.ID]; dup {
			return &ValidationError{Kind: "item", ID: m.ID, Reason: "duplicate identifier"}
		}
		items[m.ID] = struct{}{}
	}
	tables := make(map[int]struct{}, len(c.Tables))
	for _, t := range c.Tables {
		if err := ValidateTable(t); err != nil {
			return err
		}
		if _, dup := tables[t.ID]; dup {
			return &ValidationError{Kind: "table", ID: t.ID, Reason: "duplicate identifier"}
		}
		tables[t.ID] = struct{}{}
	}
	return nil
}
