package eventlog

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"lockdrop/core/events"
	"lockdrop/core/types"
)

// Record is a committed event persisted for audit queries.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence   uint64    `gorm:"uniqueIndex;not null" json:"sequence"`
	Type       string    `gorm:"size:64;index" json:"type"`
	Attributes string    `gorm:"type:text" json:"-"`
	Digest     string    `gorm:"size:64" json:"digest"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ErrChainBroken is returned by Verify when a stored digest does not match
// the recomputed chain.
var ErrChainBroken = errors.New("eventlog: digest chain broken")

const verifyBatchSize = 500

// chainDigest links a record to its predecessor:
// blake3(prev || seq || type || 0x00 || attributes).
func chainDigest(prev [32]byte, seq uint64, eventType, attrs string) [32]byte {
	var buf bytes.Buffer
	buf.Write(prev[:])
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	buf.Write(seqBytes[:])
	buf.WriteString(eventType)
	buf.WriteByte(0)
	buf.WriteString(attrs)
	return blake3.Sum256(buf.Bytes())
}

func decodeDigest(raw string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return out, err
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("digest length %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

// TableName pins the table name independent of gorm's pluralisation rules.
func (Record) TableName() string { return "lockdrop_events" }

// Event decodes the stored attributes back into a typed event.
func (r Record) Event() (*types.Event, error) {
	evt := &types.Event{Type: r.Type, Attributes: map[string]string{}}
	if strings.TrimSpace(r.Attributes) == "" {
		return evt, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &evt.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return evt, nil
}

// Store appends committed events to a SQL table through gorm.
type Store struct {
	db    *gorm.DB
	mu    sync.Mutex
	seq   uint64
	head  [32]byte
	nowFn func() time.Time
}

// Open connects to the event log. Postgres URLs use the postgres driver, any
// other value is treated as a SQLite DSN, and an empty value opens an
// in-memory database.
func Open(dsn string) (*Store, error) {
	trimmed := strings.TrimSpace(dsn)
	var dialector gorm.Dialector
	switch {
	case trimmed == "":
		dialector = sqlite.Open(MemoryDSN)
	case isPostgres(trimmed):
		dialector = postgres.Open(trimmed)
	default:
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("eventlog: database required")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate event log: %w", err)
	}
	var last Record
	res := db.Order("sequence desc").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, fmt.Errorf("load event sequence: %w", res.Error)
	}
	store := &Store{db: db, nowFn: time.Now}
	if res.RowsAffected > 0 {
		store.seq = last.Sequence
		head, err := decodeDigest(last.Digest)
		if err != nil {
			return nil, fmt.Errorf("load event digest %d: %w", last.Sequence, err)
		}
		store.head = head
	}
	return store, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append persists evt and returns the stored record.
func (s *Store) Append(evt *types.Event) (*Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("eventlog: store not configured")
	}
	if evt == nil || strings.TrimSpace(evt.Type) == "" {
		return nil, errors.New("eventlog: event type required")
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seq + 1
	digest := chainDigest(s.head, seq, evt.Type, string(attrs))
	rec := &Record{
		ID:         uuid.New(),
		Sequence:   seq,
		Type:       evt.Type,
		Attributes: string(attrs),
		Digest:     hex.EncodeToString(digest[:]),
		CreatedAt:  s.nowFn().UTC(),
	}
	if err := s.db.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	s.seq = seq
	s.head = digest
	return rec, nil
}

// Head returns the sequence and digest of the newest record.
func (s *Store) Head() (uint64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == 0 {
		return 0, ""
	}
	return s.seq, hex.EncodeToString(s.head[:])
}

// Verify recomputes the digest chain from the first record and returns the
// number of records checked. Gaps in the sequence and digest mismatches both
// report ErrChainBroken.
func (s *Store) Verify() (uint64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("eventlog: store not configured")
	}
	var (
		prev    [32]byte
		checked uint64
	)
	for {
		var batch []Record
		err := s.db.Where("sequence > ?", checked).
			Order("sequence asc").
			Limit(verifyBatchSize).
			Find(&batch).Error
		if err != nil {
			return checked, fmt.Errorf("scan events: %w", err)
		}
		for _, rec := range batch {
			if rec.Sequence != checked+1 {
				return checked, fmt.Errorf("%w: expected sequence %d, found %d", ErrChainBroken, checked+1, rec.Sequence)
			}
			want := chainDigest(prev, rec.Sequence, rec.Type, rec.Attributes)
			if hex.EncodeToString(want[:]) != rec.Digest {
				return checked, fmt.Errorf("%w: sequence %d", ErrChainBroken, rec.Sequence)
			}
			prev = want
			checked = rec.Sequence
		}
		if len(batch) < verifyBatchSize {
			return checked, nil
		}
	}
}

// Recent returns up to limit records, newest first. A non-empty prefix keeps
// only event types starting with it.
func (s *Store) Recent(limit int, prefix string) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("eventlog: store not configured")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := s.db.Order("sequence desc").Limit(limit)
	if trimmed := strings.TrimSpace(prefix); trimmed != "" {
		query = query.Where("type LIKE ?", trimmed+"%")
	}
	var records []Record
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return records, nil
}

// Emitter returns an events.Emitter that persists payload-carrying events.
// Persistence failures are logged; the originating operation has already
// committed by the time events reach the log.
func (s *Store) Emitter(logger *slog.Logger) events.Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return storeEmitter{store: s, logger: logger}
}

type storeEmitter struct {
	store  *Store
	logger *slog.Logger
}

func (e storeEmitter) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok || payload.Event() == nil {
		return
	}
	if _, err := e.store.Append(payload.Event()); err != nil {
		e.logger.Error("persist event", "type", evt.EventType(), "error", err)
	}
}
