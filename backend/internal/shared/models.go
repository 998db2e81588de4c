// ============================================================================
// backend/internal/shared/models.go
// Document shapes exchanged with the record store
// ============================================================================

package shared

// Identity field names of a class record document. The document id in the
// store is always the idNumber.
const (
	FieldIDNumber  = "idNumber"
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
)

// MissedScore is the sentinel score meaning "component not taken".
const MissedScore = -1.0

// Document is one raw stored record: its id plus untyped fields exactly as the
// backend returned them. Nothing past the grading normalizer reads Fields directly.
type Document struct {
	ID     string         `bson:"_id" json:"id"`
	Fields map[string]any `bson:",inline" json:"fields"`
}

// Clone returns a copy of the document whose Fields map can be mutated freely.
func (d Document) Clone() Document {
	fields := make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	return Document{ID: d.ID, Fields: fields}
}
