// Package schema defines the canonical event field registry.
//
// Every column the sync engine understands is declared here once, keyed by its
// canonical camelCase name. Column positions are never part of the registry:
// they are discovered from the live header row on every sync, so reordering
// spreadsheet columns requires no code change.
package schema

// FieldType is the semantic type of a spreadsheet column.
type FieldType int

const (
	FieldUUID FieldType = iota
	FieldString
	FieldNumber
	FieldDate
	FieldTimestamp
	FieldStatus
	FieldText
)

// Field describes one semantic column.
type Field struct {
	Name      string    // Canonical camelCase name (matches normalized header)
	Type      FieldType // Semantic type used for cell coercion
	Required  bool      // Row is rejected when the cell is empty
	ReadOnly  bool      // Never written on push except by the engine itself
	Attribute bool      // Value lives in Record.Attributes rather than a top-level field

	// Formula marks a computed field. It is a spreadsheet formula template
	// with {fieldName} placeholders for sibling columns and {row} for the
	// row number. Computed cells are never imported on pull and are
	// regenerated from this template on every push.
	Formula string
}

// Computed reports whether the field is derived by a spreadsheet formula.
func (f Field) Computed() bool {
	return f.Formula != ""
}

// IdentityField is the canonical name of the sync-token column.
// By convention it occupies column A, but its position is still resolved
// from the header like every other field.
const IdentityField = "syncId"

// DateField is the canonical name of the one strictly validated column.
const DateField = "eventDate"

// eventFields is the static registry for event rows.
var eventFields = []Field{
	{Name: IdentityField, Type: FieldUUID, ReadOnly: true},
	{Name: DateField, Type: FieldDate, Required: true},
	{Name: "homeTeam", Type: FieldString},
	{Name: "awayTeam", Type: FieldString},
	{Name: "title", Type: FieldString},
	{Name: "eventName", Type: FieldString,
		Formula: `=IF({homeTeam}{row}<>"",{homeTeam}{row}&" vs "&{awayTeam}{row},{title}{row})`},
	{Name: "status", Type: FieldStatus, Attribute: true},
	{Name: "venue", Type: FieldString, Attribute: true},
	{Name: "notes", Type: FieldText, Attribute: true},
	{Name: "updatedAt", Type: FieldTimestamp, ReadOnly: true},
	{Name: "attendance", Type: FieldNumber, Attribute: true},
	{Name: "homeScore", Type: FieldNumber, Attribute: true},
	{Name: "awayScore", Type: FieldNumber, Attribute: true},
	{Name: "ticketPrice", Type: FieldNumber, Attribute: true},
	{Name: "revenue", Type: FieldNumber, Attribute: true,
		Formula: `=IF({attendance}{row}="","",{attendance}{row}*{ticketPrice}{row})`},
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, len(eventFields))
	for _, f := range eventFields {
		m[f.Name] = f
	}
	return m
}()

// Fields returns the full registry in declaration order.
func Fields() []Field {
	out := make([]Field, len(eventFields))
	copy(out, eventFields)
	return out
}

// Lookup returns the field definition for a canonical name.
func Lookup(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}
