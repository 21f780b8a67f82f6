package facade

// MapRecord is a generic map-backed record. It is the record type the
// HTTP API and the seeder use; embedding applications with typed
// records implement the Record interface themselves.
type MapRecord struct {
	ID     string                 `json:"id,omitempty"`
	Fields map[string]interface{} `json:"fields"`
	Joined map[string][]Record    `json:"joined,omitempty"`
}

// NewMapRecord creates an empty, unpersisted record
func NewMapRecord() *MapRecord {
	return &MapRecord{Fields: make(map[string]interface{})}
}

// NewMapRecordFactory returns a Record factory for facade construction
func NewMapRecordFactory() func() Record {
	return func() Record { return NewMapRecord() }
}

// UniqueID returns the record's id, or "" before persistence
func (r *MapRecord) UniqueID() string {
	return r.ID
}

// SetUniqueID stores the engine-assigned id
func (r *MapRecord) SetUniqueID(id string) {
	r.ID = id
}

// MarshalFields renders the indexed fields
func (r *MapRecord) MarshalFields() (map[string]interface{}, error) {
	return r.Fields, nil
}

// UnmarshalFields populates the record from stored fields
func (r *MapRecord) UnmarshalFields(fields map[string]interface{}) error {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	r.Fields = fields
	return nil
}

// AttachJoined carries records from the joined side of a join facade.
// Attached records live next to the indexed fields and are never
// written back to the index.
func (r *MapRecord) AttachJoined(name string, records []Record) {
	if r.Joined == nil {
		r.Joined = make(map[string][]Record)
	}
	r.Joined[name] = records
}

var (
	_ Record     = (*MapRecord)(nil)
	_ JoinTarget = (*MapRecord)(nil)
)
