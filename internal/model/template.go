package model

import "time"

// VarType controls how the binder formats a template variable.
type VarType string

const (
	VarText     VarType = "text"
	VarTextarea VarType = "textarea"
	VarEmail    VarType = "email"
	VarNumber   VarType = "number"
	VarCurrency VarType = "currency"
	VarDate     VarType = "date"
)

// IsValid checks whether the variable type is a known value. An empty type
// is treated as text.
func (t VarType) IsValid() bool {
	switch t {
	case "", VarText, VarTextarea, VarEmail, VarNumber, VarCurrency, VarDate:
		return true
	}
	return false
}

// Section is a named, ordered block of document text containing
// {{variable}} placeholders.
type Section struct {
	ID       string `json:"id" toml:"id"`
	Title    string `json:"title" toml:"title"`
	Body     string `json:"body" toml:"body"`
	Order    int    `json:"order" toml:"order"`
	Required bool   `json:"required" toml:"required"`
	Editable bool   `json:"editable" toml:"editable"`
}

// Variable declares a placeholder the binder knows how to fill.
type Variable struct {
	Key          string  `json:"key" toml:"key"`
	Label        string  `json:"label" toml:"label"`
	Type         VarType `json:"type" toml:"type"`
	Required     bool    `json:"required" toml:"required"`
	DefaultValue string  `json:"default_value,omitempty" toml:"default_value"`
	// Formula is an arithmetic expression over other numeric values,
	// evaluated when neither the deal nor an override supplies the key.
	Formula string `json:"formula,omitempty" toml:"formula"`
}

// DisplayLabel returns the label, falling back to the key.
func (v Variable) DisplayLabel() string {
	if v.Label != "" {
		return v.Label
	}
	return v.Key
}

// ContractTemplate is an immutable, versioned document template.
type ContractTemplate struct {
	ID          string     `json:"id" toml:"id"`
	Name        string     `json:"name" toml:"name"`
	Description string     `json:"description,omitempty" toml:"description"`
	Type        string     `json:"type,omitempty" toml:"type"`
	Version     int        `json:"version" toml:"version"`
	Sections    []Section  `json:"sections" toml:"sections"`
	Variables   []Variable `json:"variables" toml:"variables"`
	CreatedAt   time.Time  `json:"created_at" toml:"-"`
	CreatedBy   string     `json:"created_by,omitempty" toml:"-"`
}
