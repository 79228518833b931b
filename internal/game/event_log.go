package game

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	RecordBufferSize   = 1024                   // pending records before drops
	MaxRecordsPerSec   = 2000                   // global rate limit
	BatchFlushSize     = 64                     // records per batch write
	BatchFlushInterval = 100 * time.Millisecond // how often to flush
)

// RecordType classifies audit records.
type RecordType uint8

const (
	RecordUnknown RecordType = iota
	RecordJoin
	RecordLeave
	RecordKill
	RecordPickup
	RecordRestart
	RecordEnd
)

func (t RecordType) String() string {
	switch t {
	case RecordJoin:
		return "join"
	case RecordLeave:
		return "leave"
	case RecordKill:
		return "kill"
	case RecordPickup:
		return "pickup"
	case RecordRestart:
		return "restart"
	case RecordEnd:
		return "end"
	default:
		return "unknown"
	}
}

func (t RecordType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Record is one line of the audit log.
type Record struct {
	Sequence  uint64          `json:"seq"`
	Type      RecordType      `json:"type"`
	Timestamp int64           `json:"ts"` // unix millis
	Tick      uint64          `json:"tick"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Typed payloads for audit records

type JoinRecord struct {
	PlayerID string  `json:"playerId"`
	Name     string  `json:"name"`
	SpawnX   float64 `json:"spawnX"`
	SpawnY   float64 `json:"spawnY"`
	Color    string  `json:"color"`
}

type LeaveRecord struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Kills    int    `json:"kills"`
}

type KillRecord struct {
	KillerID    string `json:"killerId"`
	VictimID    string `json:"victimId"`
	KillerKills int    `json:"killerKills"`
}

type PickupRecord struct {
	PlayerID string `json:"playerId"`
	Kind     Kind   `json:"kind"`
}

type EndRecord struct {
	Summary []KillEntry `json:"summary"`
}

// EventLog is a bounded, rate-limited, append-only JSONL audit trail. Emit
// never blocks the caller: when the buffer is full or the limiter says no,
// the record is dropped and counted.
type EventLog struct {
	records chan Record
	limiter *rate.Limiter

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
	running  atomic.Bool

	file *os.File

	sequence     atomic.Uint64
	droppedCount atomic.Uint64
	writtenCount atomic.Uint64
}

// NewEventLog creates an idle log. Emit is a no-op until Start.
func NewEventLog() *EventLog {
	return &EventLog{
		records:  make(chan Record, RecordBufferSize),
		limiter:  rate.NewLimiter(MaxRecordsPerSec, MaxRecordsPerSec/10),
		stopChan: make(chan struct{}),
	}
}

// Start opens filePath for append and starts the writer goroutine.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	el.file = f
	el.running.Store(true)

	el.wg.Add(1)
	go el.writerLoop()
	return nil
}

// Stop flushes pending records and closes the file.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Swap(false) {
			return
		}
		close(el.stopChan)
		el.wg.Wait()
		el.file.Close()
	})
}

// Emit queues a record built from payload.
func (el *EventLog) Emit(t RecordType, tick uint64, payload any) bool {
	if !el.running.Load() {
		return false
	}
	if !el.limiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}

	rec := Record{
		Sequence:  el.sequence.Add(1),
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
		Tick:      tick,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			el.droppedCount.Add(1)
			return false
		}
		rec.Payload = data
	}

	select {
	case el.records <- rec:
		return true
	default:
		el.droppedCount.Add(1)
		return false
	}
}

func (el *EventLog) writerLoop() {
	defer el.wg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collect(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flush(batch)
			}
		case <-ticker.C:
			batch = el.collect(batch[:0])
			el.flush(batch)
		}
	}
}

// collect drains up to BatchFlushSize queued records without blocking.
func (el *EventLog) collect(batch []Record) []Record {
	for len(batch) < BatchFlushSize {
		select {
		case rec := <-el.records:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
	return batch
}

func (el *EventLog) flush(batch []Record) {
	for _, rec := range batch {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		if _, err := el.file.Write(data); err != nil {
			el.droppedCount.Add(1)
			continue
		}
		el.writtenCount.Add(1)
	}
}

// Stats returns counters for monitoring.
func (el *EventLog) Stats() map[string]any {
	return map[string]any{
		"written": el.writtenCount.Load(),
		"dropped": el.droppedCount.Load(),
		"pending": len(el.records),
		"running": el.running.Load(),
	}
}
