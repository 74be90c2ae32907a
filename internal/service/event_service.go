package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoStakeVault/stakegate/internal/model"
	"github.com/google/uuid"
)

// EventRepo is a durable sink/query surface for ledger events.
type EventRepo interface {
	Insert(ctx context.Context, event *model.LedgerEvent) error
	List(ctx context.Context, account string, limit int, from, to *time.Time) ([]*model.LedgerEvent, error)
}

// EventService is the ledger's notifier: events are queued on a channel and
// fanned out to a JSONL file, the configured repos and any live subscribers.
// Emission never blocks a ledger operation.
type EventService struct {
	eventChan chan *model.LedgerEvent
	logFile   *os.File
	buffer    *eventBuffer
	repos     []EventRepo

	subMu sync.Mutex
	subs  map[string]chan *model.LedgerEvent

	done chan struct{}
}

func NewEventService(logDir string, repos ...EventRepo) (*EventService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	// Simple per-day file rotation
	filename := filepath.Join(logDir, "events-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	svc := &EventService{
		eventChan: make(chan *model.LedgerEvent, 1000),
		logFile:   f,
		buffer:    newEventBuffer(1000),
		repos:     repos,
		subs:      make(map[string]chan *model.LedgerEvent),
		done:      make(chan struct{}),
	}

	go svc.processEvents()

	return svc, nil
}

// Notify implements ledger.Notifier.
func (s *EventService) Notify(event *model.LedgerEvent) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if s.buffer != nil {
		s.buffer.Add(event)
	}
	s.broadcast(event)
	select {
	case s.eventChan <- event:
	default:
		// Buffer full: drop rather than stall the ledger.
		log.Println("event buffer full, dropping ledger event")
	}
}

func (s *EventService) List(ctx context.Context, account string, limit int, from, to *time.Time) ([]*model.LedgerEvent, error) {
	for _, repo := range s.repos {
		records, err := repo.List(ctx, account, limit, from, to)
		if err == nil && records != nil {
			return records, nil
		}
	}
	if s.buffer == nil {
		return nil, nil
	}
	return s.buffer.List(account, limit), nil
}

// Subscribe registers a live event feed. The returned channel is never
// closed by delivery; callers must Unsubscribe with the returned id.
func (s *EventService) Subscribe() (string, <-chan *model.LedgerEvent) {
	id := uuid.New().String()
	ch := make(chan *model.LedgerEvent, 64)
	s.subMu.Lock()
	s.subs[id] = ch
	s.subMu.Unlock()
	return id, ch
}

func (s *EventService) Unsubscribe(id string) {
	s.subMu.Lock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
	s.subMu.Unlock()
}

func (s *EventService) broadcast(event *model.LedgerEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
			// Slow consumer: skip, the durable sinks still have the event.
		}
	}
}

func (s *EventService) processEvents() {
	defer close(s.done)
	encoder := json.NewEncoder(s.logFile)
	for event := range s.eventChan {
		for _, repo := range s.repos {
			if err := repo.Insert(context.Background(), event); err != nil {
				log.Printf("failed to write ledger event to sink: %v", err)
			}
		}
		if err := encoder.Encode(event); err != nil {
			log.Printf("failed to write ledger event: %v", err)
		}
	}
}

// Close drains queued events to the sinks before releasing the log file.
func (s *EventService) Close() {
	close(s.eventChan)
	<-s.done
	s.logFile.Close()
}

type eventBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.LedgerEvent
	nextIndex int
}

func newEventBuffer(maxSize int) *eventBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &eventBuffer{
		maxSize: maxSize,
		records: make([]*model.LedgerEvent, 0, maxSize),
	}
}

func (b *eventBuffer) Add(event *model.LedgerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, event)
		return
	}
	b.records[b.nextIndex] = event
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *eventBuffer) List(account string, limit int) []*model.LedgerEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.LedgerEvent, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		event := b.records[idx]
		if event == nil {
			continue
		}
		if account != "" && event.Account != account {
			continue
		}
		results = append(results, event)
		if len(results) >= limit {
			break
		}
	}
	return results
}
