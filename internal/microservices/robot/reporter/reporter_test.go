package reporter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-fleet/internal/common/codec"
	"grocery-fleet/internal/connections/rabbitmq"
	"grocery-fleet/internal/domain"
)

var sample = domain.JobStatusReport{
	OrderID:        "O1",
	OrderType:      "STD",
	RobotID:        "a1-0001",
	Aisle:          "A1",
	Status:         domain.StatusSuccess,
	ProcessedItems: map[string]int32{"X": 3},
}

func inventoryServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post(ReportPath, h)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func kindOf(t *testing.T, err error) domain.TransportErrorKind {
	t.Helper()
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	return te.Kind
}

func TestHTTPReporterDeliversReport(t *testing.T) {
	var got domain.JobStatusReport
	srv := inventoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, codec.ContentType, r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		got, err = codec.DecodeReport(body)
		assert.NoError(t, err)
		ack, _ := codec.EncodeAck(domain.Ack{Success: true, Message: "ok"})
		_, _ = w.Write(ack)
	})

	ack, err := NewHTTP(srv.URL+"/", srv.Client()).Report(context.Background(), sample)
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "O1", got.OrderID)
	assert.Equal(t, "a1-0001", got.RobotID)
	assert.Equal(t, map[string]int32{"X": 3}, got.ProcessedItems)
	assert.Equal(t, domain.SchemaVersion, got.SchemaVersion)
}

func TestHTTPReporterFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    domain.TransportErrorKind
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}, domain.TransportUnavailable},
		{"bad request", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad", http.StatusBadRequest)
		}, domain.TransportRejected},
		{"declined", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"message":"unknown order"}`))
		}, domain.TransportRejected},
		{"garbage ack", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}, domain.TransportRejected},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}, domain.TransportTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := inventoryServer(t, tt.handler)
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_, err := NewHTTP(srv.URL, srv.Client()).Report(ctx, sample)
			assert.ErrorIs(t, err, domain.ErrTransport)
			assert.Equal(t, tt.kind, kindOf(t, err))
		})
	}
}

func TestHTTPReporterConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTP(url, &http.Client{}).Report(context.Background(), sample)
	assert.Equal(t, domain.TransportConnectionRefused, kindOf(t, err))
}

type fakeCaller struct {
	queue   string
	reply   []byte
	err     error
	pingErr error
}

func (f *fakeCaller) Ping() error { return f.pingErr }

func (f *fakeCaller) Call(_ context.Context, queue string, body []byte, _ string) ([]byte, error) {
	f.queue = queue
	if f.err != nil {
		return nil, f.err
	}
	if _, err := codec.DecodeReport(body); err != nil {
		return nil, err
	}
	return f.reply, nil
}

func TestAMQPReporter(t *testing.T) {
	c := &fakeCaller{reply: []byte(`{"success":true}`)}
	ack, err := NewAMQP(c, "inventory.report_job_status").Report(context.Background(), sample)
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "inventory.report_job_status", c.queue)

	c = &fakeCaller{err: rabbitmq.ErrUnroutable}
	_, err = NewAMQP(c, "q").Report(context.Background(), sample)
	assert.Equal(t, domain.TransportUnavailable, kindOf(t, err))

	c = &fakeCaller{err: context.DeadlineExceeded}
	_, err = NewAMQP(c, "q").Report(context.Background(), sample)
	assert.Equal(t, domain.TransportTimeout, kindOf(t, err))

	c = &fakeCaller{reply: []byte(`{"success":false}`)}
	_, err = NewAMQP(c, "q").Report(context.Background(), sample)
	assert.Equal(t, domain.TransportRejected, kindOf(t, err))
}

type flaky struct {
	failures int32
	calls    atomic.Int32
	block    bool
}

func (f *flaky) Report(ctx context.Context, _ domain.JobStatusReport) (domain.Ack, error) {
	n := f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return domain.Ack{}, ctx.Err()
	}
	if n <= f.failures {
		return domain.Ack{}, &domain.TransportError{Kind: domain.TransportConnectionRefused, Op: "test", Err: errors.New("refused")}
	}
	return domain.Ack{Success: true}, nil
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Timeout: 50 * time.Millisecond, MaxAttempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond}
}

func TestRetryingRecovers(t *testing.T) {
	f := &flaky{failures: 2}
	var outcomes []string
	r := NewRetrying(f, fastPolicy(3))
	r.OnAttempt = func(_ int, outcome string, _ error) { outcomes = append(outcomes, outcome) }

	ack, err := r.Report(context.Background(), sample)
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, int32(3), f.calls.Load())
	assert.Equal(t, []string{"connection_refused", "connection_refused", "ok"}, outcomes)
}

func TestRetryingGivesUpAfterMaxAttempts(t *testing.T) {
	f := &flaky{failures: 100}
	_, err := NewRetrying(f, fastPolicy(4)).Report(context.Background(), sample)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, domain.TransportConnectionRefused, kindOf(t, err))
	assert.Equal(t, int32(4), f.calls.Load())
}

func TestRetryingBoundsEachAttempt(t *testing.T) {
	f := &flaky{block: true}
	start := time.Now()
	_, err := NewRetrying(f, fastPolicy(2)).Report(context.Background(), sample)
	assert.Equal(t, domain.TransportTimeout, kindOf(t, err))
	assert.Equal(t, int32(2), f.calls.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHealthFollowsConnection(t *testing.T) {
	assert.NoError(t, Health(NewHTTP("http://inventory:50051", http.DefaultClient))())

	c := &fakeCaller{}
	health := Health(NewAMQP(c, "q"))
	assert.NoError(t, health())

	c.pingErr = rabbitmq.ErrClosed
	err := health()
	require.ErrorIs(t, err, rabbitmq.ErrClosed)
	assert.Equal(t, domain.TransportUnavailable, kindOf(t, err))
}
