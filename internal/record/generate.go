package record

import "fmt"

// Generate returns n synthetic records shaped for the given columns. The
// first column carries a numbered sample title; remaining columns get
// column-specific filler. Records are unpersisted (no ID).
func Generate(columns []string, n int) []*Record {
	records := make([]*Record, n)
	for i := range records {
		r := New()
		for j, col := range columns {
			if j == 0 {
				r.SetField(col, fmt.Sprintf("sample record %04d", i+1))
			} else {
				r.SetField(col, fmt.Sprintf("sample %s %04d", col, i+1))
			}
		}
		records[i] = r
	}
	return records
}

// Revise rewrites the first field of every record to its updated-pass value,
// keeping IDs and remaining fields intact. Records without fields are left
// alone.
func Revise(records []*Record) {
	for i, r := range records {
		names := r.FieldNames()
		if len(names) == 0 {
			continue
		}
		r.SetField(names[0], fmt.Sprintf("updated record %04d", i+1))
	}
}
