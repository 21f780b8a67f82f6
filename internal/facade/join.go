package facade

import (
	"context"

	"github.com/mdevries/open-index-search/internal/engine"
)

// Join composes a primary and a joined facade under a join relation
// and exposes the same Facade contract. Reads evaluate on the primary
// side, then related records located by a term query on the join
// field are attached to page records implementing JoinTarget.
//
// The primary facade owns identity: every mutating operation routes
// to it unchanged. The joined side is maintained through its own
// facade.
type Join struct {
	name    string
	primary Facade
	joined  Facade
	on      string
	attach  string
	toMany  bool
}

// NewJoinToMany creates a one-to-many join facade. on is the field on
// the joined side referencing the primary id; attach names the slot
// under which children are attached.
func NewJoinToMany(name string, primary, joined Facade, on, attach string) *Join {
	return &Join{name: name, primary: primary, joined: joined, on: on, attach: attach, toMany: true}
}

// NewJoinToOne creates a one-to-one join facade
func NewJoinToOne(name string, primary, joined Facade, on, attach string) *Join {
	return &Join{name: name, primary: primary, joined: joined, on: on, attach: attach}
}

// Name returns the join facade's configured name
func (j *Join) Name() string {
	return j.name
}

// Schema returns the schema of the identity-owning side
func (j *Join) Schema() *Schema {
	return j.primary.Schema()
}

// All lists the primary record set with joined records attached
func (j *Join) All(ctx context.Context, start, rows int) (*Hits, error) {
	hits, err := j.primary.All(ctx, start, rows)
	if err != nil {
		return nil, err
	}
	if err := j.attachJoined(ctx, hits.Records); err != nil {
		return nil, err
	}
	return hits, nil
}

// Size returns the primary record count
func (j *Join) Size(ctx context.Context) (int, error) {
	return j.primary.Size(ctx)
}

// ByID looks up the primary record and attaches its joined records
func (j *Join) ByID(ctx context.Context, id string) (Record, error) {
	rec, err := j.primary.ByID(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}
	if err := j.attachJoined(ctx, []Record{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

// Search queries the primary side and attaches joined records to the
// returned page
func (j *Join) Search(ctx context.Context, q Query, start, rows int, sort ...engine.SortField) (*Hits, error) {
	hits, err := j.primary.Search(ctx, q, start, rows, sort...)
	if err != nil {
		return nil, err
	}
	if err := j.attachJoined(ctx, hits.Records); err != nil {
		return nil, err
	}
	return hits, nil
}

// Exists delegates to the identity-owning side
func (j *Join) Exists(ctx context.Context, rec Record) (bool, error) {
	return j.primary.Exists(ctx, rec)
}

// Add routes to the primary facade
func (j *Join) Add(ctx context.Context, recs ...Record) error {
	return j.primary.Add(ctx, recs...)
}

// Update routes to the primary facade
func (j *Join) Update(ctx context.Context, recs ...Record) error {
	return j.primary.Update(ctx, recs...)
}

// Remove routes to the primary facade
func (j *Join) Remove(ctx context.Context, ids ...string) error {
	return j.primary.Remove(ctx, ids...)
}

// Clear is never supported on a join: wiping one side would leave the
// relation dangling
func (j *Join) Clear(ctx context.Context) error {
	return ErrClearUnsupported
}

// SupportsClear reports false for joins
func (j *Join) SupportsClear() bool {
	return false
}

func (j *Join) attachJoined(ctx context.Context, recs []Record) error {
	for _, rec := range recs {
		target, ok := rec.(JoinTarget)
		if !ok {
			continue
		}

		rows := AllRows
		if !j.toMany {
			rows = 1
		}

		related, err := j.joined.Search(ctx, Query{
			"term": map[string]interface{}{
				"path":  j.on,
				"value": rec.UniqueID(),
			},
		}, 0, rows)
		if err != nil {
			return err
		}

		target.AttachJoined(j.attach, related.Records)
	}
	return nil
}

var _ Facade = (*Join)(nil)
