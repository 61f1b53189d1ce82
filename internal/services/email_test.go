package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"gulfquotes/internal/logger"
	"gulfquotes/internal/metrics"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, job EmailJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// recordingMailer collects jobs and optionally blocks until released.
type recordingMailer struct {
	mu      sync.Mutex
	jobs    []EmailJob
	release chan struct{}
	sent    chan EmailJob
}

func newRecordingMailer(blocking bool) *recordingMailer {
	r := &recordingMailer{sent: make(chan EmailJob, 100)}
	if blocking {
		r.release = make(chan struct{})
	}
	return r
}

func (r *recordingMailer) Send(_ context.Context, job EmailJob) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	r.sent <- job
	return nil
}

func (r *recordingMailer) Jobs() []EmailJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EmailJob(nil), r.jobs...)
}

func waitJobs(t *testing.T, r *recordingMailer, n int) []EmailJob {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.sent:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for email %d of %d", i+1, n)
		}
	}
	return r.Jobs()
}

func TestMemoryQueueRetriesThenSucceeds(t *testing.T) {
	m := metrics.New()
	mailer := new(mockMailer)
	job := EmailJob{To: "a@example.com", Subject: "hi", Template: "activity"}
	mailer.On("Send", mock.Anything, job).Return(errors.New("smtp down")).Once()
	mailer.On("Send", mock.Anything, job).Return(nil).Once()

	q := NewMemoryQueue(mailer, logger.Discard(), m, MemoryQueueOptions{Workers: 1, Backoff: time.Millisecond})
	require.NoError(t, q.Enqueue(context.Background(), job))
	q.Close()

	mailer.AssertNumberOfCalls(t, "Send", 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmailsSent))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EmailsFailed))
}

func TestMemoryQueueGivesUp(t *testing.T) {
	m := metrics.New()
	mailer := new(mockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	q := NewMemoryQueue(mailer, logger.Discard(), m, MemoryQueueOptions{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond})
	require.NoError(t, q.Enqueue(context.Background(), EmailJob{To: "a@example.com"}))

	// let the worker finish its retries before Close short-circuits the backoff
	require.Eventually(t, func() bool { return testutil.ToFloat64(m.EmailsFailed) == 1 }, 2*time.Second, 5*time.Millisecond)
	q.Close()

	mailer.AssertNumberOfCalls(t, "Send", 3)
}

func TestMemoryQueueFullAndClosed(t *testing.T) {
	mailer := newRecordingMailer(true)
	q := NewMemoryQueue(mailer, logger.Discard(), nil, MemoryQueueOptions{Size: 1, Workers: 1})

	// first job is picked up by the worker and blocks, second fills the buffer
	require.NoError(t, q.Enqueue(context.Background(), EmailJob{To: "1@example.com"}))
	require.Eventually(t, func() bool { return len(q.jobs) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), EmailJob{To: "2@example.com"}))
	assert.ErrorIs(t, q.Enqueue(context.Background(), EmailJob{To: "3@example.com"}), ErrQueueFull)

	close(mailer.release)
	q.Close()
	assert.Len(t, mailer.Jobs(), 2)
	assert.ErrorIs(t, q.Enqueue(context.Background(), EmailJob{To: "4@example.com"}), ErrQueueClosed)
}

func TestMemoryQueueSkipsWhenMailDisabled(t *testing.T) {
	m := metrics.New()
	mailer := new(mockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return(ErrMailDisabled)

	q := NewMemoryQueue(mailer, logger.Discard(), m, MemoryQueueOptions{Workers: 1, Backoff: time.Millisecond})
	require.NoError(t, q.Enqueue(context.Background(), EmailJob{To: "a@example.com"}))
	q.Close()

	mailer.AssertNumberOfCalls(t, "Send", 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EmailsFailed))
}

func TestMailServiceMessage(t *testing.T) {
	svc, err := NewMailService(MailConfig{
		Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "noreply@gulfquotes.test",
	}, logger.Discard())
	require.NoError(t, err)
	assert.True(t, svc.Enabled())

	job := EmailJob{
		To:       "reader@example.com",
		Name:     "Reader",
		Subject:  "New quote from Maya Angelou",
		Template: "new_quote",
		Data: map[string]string{
			"UserName":   "Reader",
			"AuthorName": "Maya Angelou",
			"QuoteURL":   "https://gulfquotes.test/quotes/abc",
		},
		Tags: map[string]string{"type": "new_quote", "author": "Maya_Angelou"},
	}
	body, err := svc.Render(job)
	require.NoError(t, err)
	assert.Contains(t, body, "Maya Angelou")
	assert.Contains(t, body, "https://gulfquotes.test/quotes/abc")
	assert.NotContains(t, body, "<no value>")

	msg, err := svc.Message(job)
	require.NoError(t, err)
	assert.Equal(t, []string{"author=Maya_Angelou,type=new_quote"}, msg.GetHeader("X-Tags"))
	assert.Equal(t, []string{"New quote from Maya Angelou"}, msg.GetHeader("Subject"))
}

func TestMailServiceDisabled(t *testing.T) {
	svc, err := NewMailService(MailConfig{}, logger.Discard())
	require.NoError(t, err)
	assert.False(t, svc.Enabled())
	assert.ErrorIs(t, svc.Send(context.Background(), EmailJob{To: "x@example.com", Template: "activity"}), ErrMailDisabled)
}

func TestMailServiceUnknownTemplate(t *testing.T) {
	svc, err := NewMailService(MailConfig{}, logger.Discard())
	require.NoError(t, err)
	_, err = svc.Render(EmailJob{Template: "missing"})
	assert.Error(t, err)
}

func TestAMQPQueueDelivers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rabbitmq container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()
	rmq, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	t.Cleanup(func() { _ = rmq.Terminate(ctx) })

	host, err := rmq.Host(ctx)
	require.NoError(t, err)
	port, err := rmq.MappedPort(ctx, "5672")
	require.NoError(t, err)

	m := metrics.New()
	mailer := newRecordingMailer(false)
	q, err := NewAMQPQueue(fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port()), mailer, logger.Discard(), m)
	require.NoError(t, err)
	defer q.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, EmailJob{To: fmt.Sprintf("%d@example.com", i), Template: "activity"}))
	}
	jobs := waitJobs(t, mailer, 3)
	assert.Len(t, jobs, 3)
	for _, j := range jobs {
		assert.True(t, strings.HasSuffix(j.To, "@example.com"))
	}
}
