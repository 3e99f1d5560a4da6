package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pageharvest/pageharvest/internal/fetch"
	"github.com/pageharvest/pageharvest/internal/metrics"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fakeJobStore struct {
	scraper.JobStore

	mu       sync.Mutex
	jobs     map[uuid.UUID]scraper.Job
	results  []scraper.ScrapedResult
	markErr  error
	failErr  error
	complErr error

	markCalls     int
	completeCalls int
	failCalls     int
}

func newFakeJobStore(jobs ...scraper.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: make(map[uuid.UUID]scraper.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) GetJob(_ context.Context, id uuid.UUID) (scraper.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return scraper.Job{}, &scraper.NotFoundError{Entity: "job", ID: id.String()}
	}
	return job, nil
}

func (s *fakeJobStore) MarkRunning(_ context.Context, job *scraper.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	if s.markErr != nil {
		return s.markErr
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *fakeJobStore) CompleteJob(_ context.Context, job *scraper.Job, result *scraper.ScrapedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalls++
	if s.complErr != nil {
		return s.complErr
	}
	s.jobs[job.ID] = *job
	s.results = append(s.results, *result)
	return nil
}

func (s *fakeJobStore) FailJob(_ context.Context, job *scraper.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCalls++
	if s.failErr != nil {
		return s.failErr
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *fakeJobStore) stored(id uuid.UUID) scraper.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

type fakePolicyStore struct {
	scraper.PolicyStore

	policies map[uuid.UUID]scraper.SitePolicy
	getErr   error
}

func (s *fakePolicyStore) GetPolicy(_ context.Context, id uuid.UUID) (scraper.SitePolicy, error) {
	if s.getErr != nil {
		return scraper.SitePolicy{}, s.getErr
	}
	pol, ok := s.policies[id]
	if !ok {
		return scraper.SitePolicy{}, &scraper.NotFoundError{Entity: "policy", ID: id.String()}
	}
	return pol, nil
}

type fakeStrategy struct {
	mu      sync.Mutex
	lastReq scraper.FetchRequest
	body    string
	err     error
}

func (f *fakeStrategy) Fetch(_ context.Context, req scraper.FetchRequest) (scraper.FetchResponse, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.err != nil {
		return scraper.FetchResponse{}, f.err
	}
	return scraper.FetchResponse{
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(f.body),
		Headers:     http.Header{"Content-Type": []string{"text/html"}},
		Duration:    25 * time.Millisecond,
	}, nil
}

func (f *fakeStrategy) request() scraper.FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeIDGen struct{ err error }

func (g fakeIDGen) NewRawID() (uuid.UUID, error) {
	if g.err != nil {
		return uuid.Nil, g.err
	}
	return uuid.New(), nil
}

func pendingJob(t *testing.T) scraper.Job {
	t.Helper()
	return scraper.Job{
		ID:         uuid.New(),
		URL:        "https://example.com/articles/1",
		Method:     scraper.MethodStatic,
		Status:     scraper.JobStatusPending,
		MaxRetries: 3,
	}
}

func newRegistry(strategy scraper.FetchStrategy, methods ...scraper.FetchMethod) *fetch.Registry {
	r := fetch.NewRegistry()
	for _, m := range methods {
		r.Register(m, strategy)
	}
	return r
}

const articleHTML = `<html><head><title>Widget Review</title></head>
<body><article><h1>Widget Review</h1><p>Seven words of body text live right here.</p></article></body></html>`

func TestExecuteSuccess(t *testing.T) {
	t.Parallel()

	job := pendingJob(t)
	jobs := newFakeJobStore(job)
	strategy := &fakeStrategy{body: articleHTML}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	o := New(jobs, &fakePolicyStore{}, newRegistry(strategy, scraper.MethodStatic), nil, fakeClock{now: now}, fakeIDGen{}, nil)

	got, err := o.Execute(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusCompleted, got.Status)
	require.Equal(t, 1, got.ResultCount)
	require.Empty(t, got.ErrorText)
	require.Zero(t, got.RetryCount)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)

	require.Len(t, jobs.results, 1)
	res := jobs.results[0]
	require.Equal(t, job.ID, res.JobID)
	require.Equal(t, "Widget Review", res.Title)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, len(articleHTML), res.ContentLength)
	require.Positive(t, res.WordCount)
	require.Equal(t, articleHTML, res.RawHTML)

	stored := jobs.stored(job.ID)
	require.Equal(t, scraper.JobStatusCompleted, stored.Status)
}

func TestExecuteNonPendingNoSideEffects(t *testing.T) {
	t.Parallel()

	for _, status := range []scraper.JobStatus{
		scraper.JobStatusRunning,
		scraper.JobStatusCompleted,
		scraper.JobStatusFailed,
		scraper.JobStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()

			job := pendingJob(t)
			job.Status = status
			jobs := newFakeJobStore(job)
			strategy := &fakeStrategy{body: articleHTML}

			o := New(jobs, &fakePolicyStore{}, newRegistry(strategy, scraper.MethodStatic), nil, fakeClock{now: time.Now()}, fakeIDGen{}, nil)

			_, err := o.Execute(context.Background(), job.ID)
			var stateErr *scraper.InvalidStateError
			require.ErrorAs(t, err, &stateErr)
			require.Equal(t, status, stateErr.Status)

			require.Zero(t, jobs.markCalls)
			require.Zero(t, jobs.completeCalls)
			require.Zero(t, jobs.failCalls)
			require.Equal(t, status, jobs.stored(job.ID).Status)
		})
	}
}

func TestExecuteUnknownJob(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobStore()
	o := New(jobs, &fakePolicyStore{}, fetch.NewRegistry(), nil, fakeClock{now: time.Now()}, fakeIDGen{}, nil)

	_, err := o.Execute(context.Background(), uuid.New())
	require.True(t, scraper.IsNotFound(err))
}

func TestExecuteFetchFailure(t *testing.T) {
	t.Parallel()

	job := pendingJob(t)
	job.RetryCount = 1
	jobs := newFakeJobStore(job)
	fetchErr := scraper.NewFetchError(scraper.FetchTimeout, job.URL, context.DeadlineExceeded)
	strategy := &fakeStrategy{err: fetchErr}

	o := New(jobs, &fakePolicyStore{}, newRegistry(strategy, scraper.MethodStatic), nil, fakeClock{now: time.Now()}, fakeIDGen{}, nil)

	got, err := o.Execute(context.Background(), job.ID)
	require.Error(t, err)
	var fe *scraper.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, scraper.FetchTimeout, fe.Kind)

	require.Equal(t, scraper.JobStatusFailed, got.Status)
	require.Equal(t, 2, got.RetryCount)
	require.Contains(t, got.ErrorText, "timeout")
	require.NotNil(t, got.CompletedAt)
	require.True(t, got.Retryable())

	require.Equal(t, 1, jobs.failCalls)
	require.Zero(t, jobs.completeCalls)
	require.Equal(t, scraper.JobStatusFailed, jobs.stored(job.ID).Status)
}

func TestExecuteRetriesExhausted(t *testing.T) {
	t.Parallel()

	job := pendingJob(t)
	job.MaxRetries = 1
	job.RetryCount = 0
	jobs := newFakeJobStore(job)
	strategy := &fakeStrategy{err: scraper.NewFetchError(scraper.FetchUnreachable, job.URL, errors.New("connection refused"))}

	o := New(jobs, &fakePolicyStore{}, newRegistry(strategy, scraper.MethodStatic), nil, fakeClock{now: time.Now()}, fakeIDGen{}, nil)

	got, err := o.Execute(context.Background(), job.ID)
	require.Error(t, err)
	require.Equal(t, 1, got.RetryCount)
	require.False(t, got.Retryable())
}

func TestExecuteUnknownMethod(t *testing.T) {
	t.Parallel()

	job := pendingJob(t)
	job.Method = scraper.MethodRod
	jobs := newFakeJobStore(job)

	// Registry only knows static, so the rod job must fail.
	o := New(jobs, &fakePolicyStore{}, newRegistry(&fakeStrategy{body: articleHTML}, scraper.MethodStatic), nil, fakeClock{now: time.Now()}, fakeIDGen{}, nil)

	got, err := o.Execute(context.Background(), job.ID)
	require.Error(t, err)
	require.Equal(t, scraper.JobStatusFailed, got.Status)
	require.Equal(t, 1, jobs.failCalls)
}

func TestExecuteAppliesPolicy(t *testing.T) {
	t.Parallel()

	polID := uuid.New()
	pol := scraper.SitePolicy{
		ID:              polID,
		Name:            "example",
		Domain:          "example.com",
		DefaultMethod:   scraper.MethodChromedp,
		DefaultHeaders:  map[string]string{"X-Source": "policy"},
		RequiresJS:      true,
		WaitForSelector: "#app",
		UserAgents:      []string{"PolicyBot/1.0"},
		Active:          true,
	}
	job := pendingJob(t)
	job.PolicyID = &polID
	jobs := newFakeJobStore(job)
	strategy := &fakeStrategy{body: articleHTML}

	// The same fake serves both methods so the override is observable via
	// the request it captures.
	registry := newRegistry(strategy, scraper.MethodStatic, scraper.MethodChromedp)
	policies := &fakePolicyStore{policies: map[uuid.UUID]scraper.SitePolicy{polID: pol}}

	o := New(jobs, policies, registry, nil, fakeClock{now: time.Now()}, fakeIDGen{}, nil)

	got, err := o.Execute(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusCompleted, got.Status)

	req := strategy.request()
	require.Equal(t, "policy", req.Headers["X-Source"])
	require.Equal(t, "PolicyBot/1.0", req.UserAgent)
	require.Equal(t, "#app", req.WaitForSelector)
}

func TestExecutePolicyLookupFailureFailsJob(t *testing.T) {
	t.Parallel()

	polID := uuid.New()
	job := pendingJob(t)
	job.PolicyID = &polID
	jobs := newFakeJobStore(job)
	policies := &fakePolicyStore{getErr: errors.New("db down")}

	o := New(jobs, policies, newRegistry(&fakeStrategy{body: articleHTML}, scraper.MethodStatic), nil, fakeClock{now: time.Now()}, fakeIDGen{}, nil)

	got, err := o.Execute(context.Background(), job.ID)
	require.Error(t, err)
	require.ErrorContains(t, err, "resolve site policy")
	require.Equal(t, scraper.JobStatusFailed, got.Status)
}

func TestExecuteRecurringSetsNextRun(t *testing.T) {
	t.Parallel()

	job := pendingJob(t)
	job.IsRecurring = true
	job.CronExpr = "0 6 * * *"
	jobs := newFakeJobStore(job)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	o := New(jobs, &fakePolicyStore{}, newRegistry(&fakeStrategy{body: articleHTML}, scraper.MethodStatic), nil, fakeClock{now: now}, fakeIDGen{}, nil)

	got, err := o.Execute(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextRunAt)
	require.Equal(t, time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC), got.NextRunAt.UTC())
}

func TestExecutePersistFailureWinsOverExecError(t *testing.T) {
	t.Parallel()

	job := pendingJob(t)
	jobs := newFakeJobStore(job)
	jobs.failErr = errors.New("write refused")
	strategy := &fakeStrategy{err: scraper.NewFetchError(scraper.FetchUnreachable, job.URL, errors.New("no route"))}

	o := New(jobs, &fakePolicyStore{}, newRegistry(strategy, scraper.MethodStatic), nil, fakeClock{now: time.Now()}, fakeIDGen{}, nil)

	_, err := o.Execute(context.Background(), job.ID)
	require.Error(t, err)
	require.ErrorContains(t, err, "persist job failure")
	require.ErrorContains(t, err, "write refused")
}

func TestExecuteIDGenerationFailure(t *testing.T) {
	t.Parallel()

	job := pendingJob(t)
	jobs := newFakeJobStore(job)

	o := New(jobs, &fakePolicyStore{}, newRegistry(&fakeStrategy{body: articleHTML}, scraper.MethodStatic), nil, fakeClock{now: time.Now()}, fakeIDGen{err: fmt.Errorf("entropy exhausted")}, nil)

	got, err := o.Execute(context.Background(), job.ID)
	require.Error(t, err)
	require.ErrorContains(t, err, "generate result id")
	require.Equal(t, scraper.JobStatusFailed, got.Status)
}
