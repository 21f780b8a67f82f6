// Package seeder streams MongoDB collections into index facades: a
// bulk initial load followed by incremental timestamp polling. All
// writes go through the facades' idempotent Update path, so re-seeding
// the same documents is harmless.
package seeder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mdevries/open-index-search/config"
	"github.com/mdevries/open-index-search/internal/facade"
	"github.com/mdevries/open-index-search/internal/seedstate"
)

// Source is the slice of the MongoDB client the seeder reads from.
// mongodb.Client satisfies it.
type Source interface {
	CountDocuments(collection string) (int64, error)
	FindAll(ctx context.Context, collection string) (*mongo.Cursor, error)
	FindChangedSince(ctx context.Context, collection, timestampField string, since time.Time) (*mongo.Cursor, error)
}

// Service manages seeding for every facade with a configured collection
type Service struct {
	mongo   Source
	facades map[string]facade.Facade
	cfg     *config.Config
	state   *seedstate.Manager
	wg      sync.WaitGroup
	stopCh  chan struct{}
	pending atomic.Int32
}

// NewService creates a seeder over the given facade registry
func NewService(mongo Source, facades map[string]facade.Facade, cfg *config.Config) (*Service, error) {
	state := seedstate.NewManager(cfg.Search.SeedStatePath)
	if err := state.Load(); err != nil {
		return nil, fmt.Errorf("failed to load seed state: %w", err)
	}

	for _, fc := range cfg.Facades {
		if fc.Collection == "" {
			continue
		}
		if _, ok := facades[fc.Name]; !ok {
			return nil, fmt.Errorf("seed target facade %s not in registry", fc.Name)
		}
	}

	return &Service{
		mongo:   mongo,
		facades: facades,
		cfg:     cfg,
		state:   state,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start launches the seeding goroutines
func (s *Service) Start(ctx context.Context) error {
	log.Println("Starting seeder service...")

	s.wg.Add(1)
	go s.state.StartPeriodicSave(30*time.Second, s.stopCh, &s.wg)

	for _, fc := range s.cfg.Facades {
		if fc.Collection == "" {
			continue
		}

		s.pending.Add(1)
		s.wg.Add(1)
		go s.initialSeed(ctx, fc)

		s.wg.Add(1)
		go s.pollChanges(ctx, fc)
	}

	return nil
}

// Ready reports whether every initial seed has finished
func (s *Service) Ready() bool {
	return s.pending.Load() == 0
}

// Stop stops the seeder and flushes the seed state
func (s *Service) Stop() {
	log.Println("Stopping seeder service...")
	close(s.stopCh)
	s.wg.Wait()

	if err := s.state.Save(); err != nil {
		log.Printf("Failed to save seed state during shutdown: %v", err)
	}
	log.Println("Seeder service stopped")
}

// initialSeed bulk-loads an entire collection into its facade
func (s *Service) initialSeed(ctx context.Context, fc config.FacadeConfig) {
	defer s.wg.Done()
	defer s.pending.Add(-1)

	target := s.facades[fc.Name]
	seedStart := time.Now()

	log.Printf("Starting initial seed for facade %s from collection %s", fc.Name, fc.Collection)
	s.state.SetCollection(fc.Name, fc.Collection)
	s.state.SetStatus(fc.Name, seedstate.StatusInProgress)
	s.state.SetProgress(fc.Name, "0%")

	total, err := s.mongo.CountDocuments(fc.Collection)
	if err != nil {
		log.Printf("Failed to count documents in %s: %v", fc.Collection, err)
		total = 0
	}

	cursor, err := s.mongo.FindAll(ctx, fc.Collection)
	if err != nil {
		log.Printf("Failed to open cursor for %s: %v", fc.Collection, err)
		s.state.SetStatus(fc.Name, seedstate.StatusIdle)
		return
	}
	defer cursor.Close(ctx)

	batchSize := s.cfg.Search.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	var seeded int64
	batch := make([]facade.Record, 0, batchSize)

	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		if err := target.Update(ctx, batch...); err != nil {
			log.Printf("Failed to seed batch into %s: %v", fc.Name, err)
			return false
		}
		seeded += int64(len(batch))
		batch = batch[:0]
		if total > 0 {
			s.state.SetProgress(fc.Name, fmt.Sprintf("%d%%", seeded*100/total))
		}
		return true
	}

	for cursor.Next(ctx) {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			log.Printf("Failed to decode document from %s: %v", fc.Collection, err)
			continue
		}

		batch = append(batch, RecordFromDocument(doc, fc.IDField))
		if len(batch) >= batchSize {
			if !flush() {
				s.state.SetStatus(fc.Name, seedstate.StatusIdle)
				return
			}
		}
	}
	if err := cursor.Err(); err != nil {
		log.Printf("Cursor error while seeding %s: %v", fc.Name, err)
	}
	if !flush() {
		s.state.SetStatus(fc.Name, seedstate.StatusIdle)
		return
	}

	s.state.RecordSeeded(fc.Name, seeded)
	s.state.SetLastPollTime(fc.Name, seedStart)
	s.state.SetProgress(fc.Name, "100%")
	s.state.SetStatus(fc.Name, seedstate.StatusDone)

	log.Printf("Initial seed for facade %s done: %d records", fc.Name, seeded)
}

// pollChanges periodically upserts documents modified since the last poll
func (s *Service) pollChanges(ctx context.Context, fc config.FacadeConfig) {
	defer s.wg.Done()

	interval := fc.PollInterval
	if interval <= 0 {
		interval = s.cfg.Search.PollInterval
	}
	if interval <= 0 {
		interval = 30
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.pollOnce(ctx, fc); err != nil {
				log.Printf("Poll failed for facade %s: %v", fc.Name, err)
			}
		}
	}
}

func (s *Service) pollOnce(ctx context.Context, fc config.FacadeConfig) error {
	target := s.facades[fc.Name]

	var since time.Time
	if st := s.state.Get(fc.Name); st != nil {
		since = st.LastPollTime
	}
	pollStart := time.Now()

	cursor, err := s.mongo.FindChangedSince(ctx, fc.Collection, fc.TimestampField, since)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var changed []facade.Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			log.Printf("Failed to decode changed document from %s: %v", fc.Collection, err)
			continue
		}
		changed = append(changed, RecordFromDocument(doc, fc.IDField))
	}
	if err := cursor.Err(); err != nil {
		return err
	}

	if len(changed) > 0 {
		if err := target.Update(ctx, changed...); err != nil {
			return err
		}
		s.state.RecordSeeded(fc.Name, int64(len(changed)))
		log.Printf("Seeded %d changed records into facade %s", len(changed), fc.Name)
	}

	s.state.SetLastPollTime(fc.Name, pollStart)
	return nil
}

// RecordFromDocument converts a MongoDB document to a facade record.
// The id comes from idField ("_id" when empty); the id field itself is
// stripped from the indexed fields and BSON-specific value types are
// flattened to indexable ones.
func RecordFromDocument(doc bson.M, idField string) *facade.MapRecord {
	key := idField
	if key == "" {
		key = "_id"
	}

	var id string
	switch v := doc[key].(type) {
	case primitive.ObjectID:
		id = v.Hex()
	case string:
		id = v
	case nil:
		id = ""
	default:
		id = fmt.Sprintf("%v", v)
	}

	fields := make(map[string]interface{}, len(doc))
	for name, value := range doc {
		if name == "_id" || name == key {
			continue
		}
		fields[name] = flattenValue(value)
	}

	return &facade.MapRecord{ID: id, Fields: fields}
}

func flattenValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time()
	case primitive.A:
		flattened := make([]interface{}, len(v))
		for i, item := range v {
			flattened[i] = flattenValue(item)
		}
		return flattened
	case bson.M:
		flattened := make(map[string]interface{}, len(v))
		for name, item := range v {
			flattened[name] = flattenValue(item)
		}
		return flattened
	default:
		return value
	}
}
