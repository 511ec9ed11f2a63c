// Package record defines the logical record model mutated by gobulk.
package record

import (
	"github.com/elliotchance/orderedmap/v2"
)

// Record is a single logical entity instance subject to create, update, and
// delete. ID is assigned by the store on creation and is empty before that.
// Field insertion order is preserved so generated SQL and rendered output
// stay deterministic.
type Record struct {
	ID     string
	fields *orderedmap.OrderedMap[string, string]
}

// New creates an empty, unpersisted record.
func New() *Record {
	return &Record{
		fields: orderedmap.NewOrderedMap[string, string](),
	}
}

// SetField sets a field value, appending the field to the order on first set.
func (r *Record) SetField(name, value string) {
	r.fields.Set(name, value)
}

// Field returns the value for a field name.
func (r *Record) Field(name string) (string, bool) {
	return r.fields.Get(name)
}

// FieldNames returns the field names in insertion order.
func (r *Record) FieldNames() []string {
	return r.fields.Keys()
}

// Values returns the field values in insertion order.
func (r *Record) Values() []string {
	values := make([]string, 0, r.fields.Len())
	for el := r.fields.Front(); el != nil; el = el.Next() {
		values = append(values, el.Value)
	}
	return values
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return r.fields.Len()
}

// Clone returns a deep copy of the record, ID included.
func (r *Record) Clone() *Record {
	return &Record{
		ID:     r.ID,
		fields: r.fields.Copy(),
	}
}
