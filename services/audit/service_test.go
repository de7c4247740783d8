package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories/mocks"
	"github.com/upb/manual-share/services/events"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func insertedLogs(repo *mocks.AuditRepository) []*models.AuditLog {
	var logs []*models.AuditLog
	for _, call := range repo.Calls {
		if call.Method == "Insert" {
			logs = append(logs, call.Arguments.Get(1).(*models.AuditLog))
		}
	}
	return logs
}

func TestAuditService_StartStop(t *testing.T) {
	repo := new(mocks.AuditRepository)
	service := NewAuditService(repo, nil, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 2})

	require.NoError(t, service.Start())

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	assert.Error(t, service.Start())

	require.NoError(t, service.Stop(5*time.Second))
	assert.False(t, service.GetStats().Started)
	assert.Error(t, service.Stop(time.Second))
}

func TestAuditService_LogEventBeforeStart(t *testing.T) {
	service := NewAuditService(new(mocks.AuditRepository), nil, zap.NewNop(), DefaultConfig())

	err := service.LogEvent(&AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionSignup, "organization")})
	assert.Error(t, err)
}

func TestAuditService_InsertsAndPublishes(t *testing.T) {
	repo := new(mocks.AuditRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	pub := &recordingPublisher{}

	service := NewAuditService(repo, pub, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 2})
	require.NoError(t, service.Start())

	orgID := uuid.New()
	log := models.NewAuditLog(orgID, models.AuditActionManualCreated, "manual")
	require.NoError(t, service.LogEvent(&AuditEvent{Log: log}))

	// Stop drains the buffer
	require.NoError(t, service.Stop(5*time.Second))

	logs := insertedLogs(repo)
	require.Len(t, logs, 1)
	assert.Equal(t, orgID, logs[0].OrgID)
	assert.Equal(t, models.AuditActionManualCreated, logs[0].Action)

	require.Equal(t, 1, pub.count())
	assert.Equal(t, log.ID, pub.events[0].ID)
	assert.Equal(t, "manual_created", pub.events[0].Type)
}

func TestAuditService_InsertFailureStillPublishes(t *testing.T) {
	repo := new(mocks.AuditRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	pub := &recordingPublisher{}

	service := NewAuditService(repo, pub, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Start())
	require.NoError(t, service.LogEvent(&AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionStaffDeleted, "user")}))
	require.NoError(t, service.Stop(5*time.Second))

	assert.Equal(t, 1, pub.count())
}

func TestAuditService_FullBufferDropsEvent(t *testing.T) {
	repo := new(mocks.AuditRepository)
	release := make(chan struct{})
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		<-release
	})

	service := NewAuditService(repo, nil, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})
	require.NoError(t, service.Start())

	newEvent := func() *AuditEvent {
		return &AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionManualUpdated, "manual")}
	}

	// first event occupies the worker, second fills the buffer
	require.NoError(t, service.LogEvent(newEvent()))
	require.Eventually(t, func() bool { return service.GetStats().PendingEvents == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, service.LogEvent(newEvent()))
	assert.Equal(t, 1, service.GetStats().PendingEvents)

	assert.EqualError(t, service.LogEvent(newEvent()), "audit event buffer full")

	close(release)
	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, insertedLogs(repo), 2)
}

func TestAuditService_ConcurrentLogging(t *testing.T) {
	repo := new(mocks.AuditRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(repo, nil, zap.NewNop(), Config{BufferSize: 1000, WorkerCount: 5})
	require.NoError(t, service.Start())

	orgID := uuid.New()
	goroutineCount := 10
	eventsPerGoroutine := 10
	var wg sync.WaitGroup

	for i := 0; i < goroutineCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				log := models.NewAuditLog(orgID, models.AuditActionTranslationCreated, "manual_translation")
				_ = service.LogEvent(&AuditEvent{Log: log})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, insertedLogs(repo), goroutineCount*eventsPerGoroutine)
}

func TestAuditService_BufferFull(t *testing.T) {
	repo := new(mocks.AuditRepository)
	release := make(chan struct{})
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		<-release
	})

	service := NewAuditService(repo, nil, zap.NewNop(), Config{BufferSize: 5, WorkerCount: 1})
	require.NoError(t, service.Start())

	successCount := 0
	for i := 0; i < 20; i++ {
		log := models.NewAuditLog(uuid.New(), models.AuditActionManualUpdated, "manual")
		if err := service.LogEvent(&AuditEvent{Log: log}); err == nil {
			successCount++
		}
	}

	// one in flight at most plus the buffer
	assert.LessOrEqual(t, successCount, 6)
	assert.GreaterOrEqual(t, successCount, 5)

	close(release)
	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, insertedLogs(repo), successCount)
}

func TestAuditService_Record(t *testing.T) {
	repo := new(mocks.AuditRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(repo, nil, zap.NewNop(), DefaultConfig())
	require.NoError(t, service.Start())

	actor := models.Actor{
		UserID:    uuid.New(),
		OrgID:     uuid.New(),
		Role:      models.RoleAdmin,
		RequestID: "req-42",
		IPAddress: "192.0.2.1",
		UserAgent: "test-agent",
	}
	manualID := uuid.New()
	service.Record(actor, models.AuditActionManualDeleted, "manual", manualID, map[string]interface{}{"title": "Closing"})

	require.NoError(t, service.Stop(5*time.Second))

	logs := insertedLogs(repo)
	require.Len(t, logs, 1)
	got := logs[0]
	assert.Equal(t, actor.OrgID, got.OrgID)
	require.NotNil(t, got.UserID)
	assert.Equal(t, actor.UserID, *got.UserID)
	require.NotNil(t, got.ResourceID)
	assert.Equal(t, manualID, *got.ResourceID)
	assert.Equal(t, "req-42", got.RequestID)
	assert.JSONEq(t, `{"title":"Closing"}`, string(got.Details))
}

func TestAuditService_RecordAfterStopIsSwallowed(t *testing.T) {
	repo := new(mocks.AuditRepository)
	service := NewAuditService(repo, nil, zap.NewNop(), DefaultConfig())
	require.NoError(t, service.Start())
	require.NoError(t, service.Stop(time.Second))

	assert.NotPanics(t, func() {
		service.Record(models.Actor{OrgID: uuid.New()}, models.AuditActionSignup, "organization", uuid.Nil, nil)
	})
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	assert.NotPanics(t, func() {
		r.Record(models.Actor{}, models.AuditActionSignup, "organization", uuid.New(), nil)
	})
}
