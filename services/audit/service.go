package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"github.com/upb/manual-share/services/events"
	"go.uber.org/zap"
)

// Recorder records a domain action. Implementations never fail the caller.
type Recorder interface {
	Record(actor models.Actor, action models.AuditAction, resourceType string, resourceID uuid.UUID, details map[string]interface{})
}

// NopRecorder discards every entry
type NopRecorder struct{}

// Record implements Recorder
func (NopRecorder) Record(models.Actor, models.AuditAction, string, uuid.UUID, map[string]interface{}) {}

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log *models.AuditLog
}

// AuditService writes audit entries and forwards them to the event broker from a worker pool
type AuditService struct {
	auditRepo   repositories.AuditRepository
	publisher   events.Publisher
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	stopped     bool
	mu          sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 4,
	}
}

// NewAuditService creates a new AuditService instance. A nil publisher disables forwarding.
func NewAuditService(auditRepo repositories.AuditRepository, publisher events.Publisher, logger *zap.Logger, config Config) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())

	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}

	return &AuditService{
		auditRepo:   auditRepo,
		publisher:   publisher,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service.
// Waits for all pending events to be processed.
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	// no more events will be accepted
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. A full buffer drops the event.
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.String("org_id", event.Log.OrgID.String()))
		return fmt.Errorf("audit event buffer full")
	}
}

// Record builds an audit entry for the actor and queues it. Failures are only logged.
func (s *AuditService) Record(actor models.Actor, action models.AuditAction, resourceType string, resourceID uuid.UUID, details map[string]interface{}) {
	log := models.NewAuditLog(actor.OrgID, action, resourceType).
		WithRequest(actor.RequestID, actor.IPAddress, actor.UserAgent)
	if actor.UserID != uuid.Nil {
		log.WithUser(actor.UserID)
	}
	if resourceID != uuid.Nil {
		log.WithResource(resourceID)
	}
	if details != nil {
		log.WithDetails(details)
	}

	if err := s.LogEvent(&AuditEvent{Log: log}); err != nil {
		s.logger.Warn("audit entry not recorded",
			zap.String("action", string(action)),
			zap.String("request_id", actor.RequestID),
			zap.Error(err))
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		s.processEvent(id, event)
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent stores the entry, then publishes it. A failed insert still publishes.
func (s *AuditService) processEvent(workerID int, event *AuditEvent) {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		s.logger.Error("failed to insert audit log",
			zap.Int("worker_id", workerID),
			zap.Error(err),
			zap.String("action", string(event.Log.Action)),
			zap.String("org_id", event.Log.OrgID.String()))
	}

	if err := s.publisher.Publish(ctx, events.FromAuditLog(event.Log)); err != nil {
		s.logger.Warn("failed to publish domain event",
			zap.Int("worker_id", workerID),
			zap.Error(err),
			zap.String("action", string(event.Log.Action)))
	}
}

// GetStats reports the queue state. Readiness uses it to flag a stopped
// pipeline or a saturated buffer.
func (s *AuditService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}
