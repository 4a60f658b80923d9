package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
)

// memoryReportStore mimics the conditional update semantics of the SQL store.
type memoryReportStore struct {
	mu         sync.Mutex
	reports    map[string]*models.Report
	createErr  error
	verifyErr  error
	seq        int
	lastFilter models.ReportFilter
}

func newMemoryReportStore() *memoryReportStore {
	return &memoryReportStore{reports: make(map[string]*models.Report)}
}

func (m *memoryReportStore) Create(ctx context.Context, report *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	report.ID = fmt.Sprintf("r%d", m.seq)
	clone := *report
	m.reports[report.ID] = &clone
	return nil
}

func (m *memoryReportStore) FindByID(ctx context.Context, id string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("find report by id: %w", sql.ErrNoRows)
	}
	clone := *r
	return &clone, nil
}

func (m *memoryReportStore) FindByToken(ctx context.Context, token string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.VerificationToken == token {
			clone := *r
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("find report by token: %w", sql.ErrNoRows)
}

func (m *memoryReportStore) MarkVerified(ctx context.Context, token string, verifiedAt time.Time) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	for _, r := range m.reports {
		if r.VerificationToken == token && r.VerifiedAt == nil {
			ts := verifiedAt
			r.VerifiedAt = &ts
			r.Status = models.ReportStatusVerified
			clone := *r
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("mark report verified: %w", sql.ErrNoRows)
}

type mailerStub struct {
	mu            sync.Mutex
	verifications []models.Report
	notifications []models.Report
	resets        []string
	err           error
}

func (m *mailerStub) SendVerificationRequest(ctx context.Context, report models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, report)
	return m.err
}

func (m *mailerStub) SendAdminNotification(ctx context.Context, report models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, report)
	return m.err
}

func (m *mailerStub) SendPasswordReset(ctx context.Context, user models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, token)
	return m.err
}

type limiterStub struct{ allowed bool }

func (l limiterStub) AllowEmail(ctx context.Context, email string) RateLimitDecision {
	return RateLimitDecision{Allowed: l.allowed, RetryAfter: time.Hour}
}

func newReportServiceFixture() (*ReportService, *memoryReportStore, *mailerStub) {
	store := newMemoryReportStore()
	mailer := &mailerStub{}
	svc := NewReportService(store, mailer, limiterStub{allowed: true}, nil, nil, NewMetricsService(), nil)
	return svc, store, mailer
}

func TestSubmitCreatesUnverifiedReport(t *testing.T) {
	svc, store, mailer := newReportServiceFixture()

	req := validSubmission()
	req.Email = " Resident@Example.COM "
	req.IssueDescription = "  Plan check comments contradicted each other & stalled us. "
	req.Departments = []string{"Planning", "Planning", "Building & Safety"}

	resp, err := svc.Submit(context.Background(), req, dto.SubmissionMeta{IP: "203.0.113.1"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusNew, resp.Status)

	stored := store.reports[resp.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "resident@example.com", stored.Email)
	assert.Equal(t, "Plan check comments contradicted each other & stalled us.", stored.IssueDescription)
	assert.Equal(t, []string{"Planning", "Building & Safety"}, []string(stored.Departments))
	assert.True(t, stored.Anonymous)
	assert.Nil(t, stored.VerifiedAt)
	assert.Equal(t, models.StageUnverified, stored.Stage())
	assert.GreaterOrEqual(t, len(stored.VerificationToken), 43)
	require.Len(t, mailer.verifications, 1)
	assert.Equal(t, resp.ID, mailer.verifications[0].ID)
}

func TestSubmitNamedReportIsNotAnonymous(t *testing.T) {
	svc, store, _ := newReportServiceFixture()
	req := validSubmission()
	req.Name = "Sarah"

	resp, err := svc.Submit(context.Background(), req, dto.SubmissionMeta{})
	require.NoError(t, err)
	assert.False(t, store.reports[resp.ID].Anonymous)
}

func TestSubmitTokensAreUnique(t *testing.T) {
	svc, store, _ := newReportServiceFixture()
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		resp, err := svc.Submit(context.Background(), validSubmission(), dto.SubmissionMeta{})
		require.NoError(t, err)
		token := store.reports[resp.ID].VerificationToken
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestSubmitValidationCreatesNothing(t *testing.T) {
	svc, store, mailer := newReportServiceFixture()
	req := validSubmission()
	req.IssueDescription = "<script>x</script>short"

	_, err := svc.Submit(context.Background(), req, dto.SubmissionMeta{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "must not contain markup", appErr.Details["issue_description"])
	assert.Empty(t, store.reports)
	assert.Empty(t, mailer.verifications)
}

func TestSubmitKeepsLessThanSignsVerbatim(t *testing.T) {
	svc, store, _ := newReportServiceFixture()
	req := validSubmission()
	req.IssueDescription = "Fee review took < 3 weeks in 2019 and > 20 weeks now.\r\nWhy?"

	resp, err := svc.Submit(context.Background(), req, dto.SubmissionMeta{})
	require.NoError(t, err)
	assert.Equal(t, req.IssueDescription, store.reports[resp.ID].IssueDescription)
}

func TestSubmitRejectsTextReadAsMarkup(t *testing.T) {
	svc, store, mailer := newReportServiceFixture()
	req := validSubmission()
	req.IssueDescription = "Fee schedule said cost<budget so we waited twenty weeks for review"

	_, err := svc.Submit(context.Background(), req, dto.SubmissionMeta{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "must not contain markup", appErr.Details["issue_description"])
	assert.Empty(t, store.reports)
	assert.Empty(t, mailer.verifications)
}

func TestSubmitHoneypotAndThrottle(t *testing.T) {
	svc, store, _ := newReportServiceFixture()
	req := validSubmission()
	req.Website = "http://spam.example"

	_, err := svc.Submit(context.Background(), req, dto.SubmissionMeta{})
	assert.ErrorIs(t, err, appErrors.ErrTooManyRequests)

	svc.limiter = limiterStub{allowed: false}
	_, err = svc.Submit(context.Background(), validSubmission(), dto.SubmissionMeta{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrTooManyRequests.Code, appErr.Code)
	assert.Equal(t, "3600", appErr.Details["retry_after"])
	assert.Empty(t, store.reports)
}

func TestSubmitPersistenceFailure(t *testing.T) {
	svc, store, mailer := newReportServiceFixture()
	store.createErr = errors.New("connection refused")

	_, err := svc.Submit(context.Background(), validSubmission(), dto.SubmissionMeta{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Empty(t, mailer.verifications)
}

func TestVerifyTransitionsOnce(t *testing.T) {
	svc, store, mailer := newReportServiceFixture()
	resp, err := svc.Submit(context.Background(), validSubmission(), dto.SubmissionMeta{})
	require.NoError(t, err)
	token := store.reports[resp.ID].VerificationToken

	result, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, dto.VerifyOutcomeVerified, result.Outcome)
	assert.Equal(t, models.ReportStatusVerified, store.reports[resp.ID].Status)
	assert.Len(t, mailer.notifications, 1)

	first := *store.reports[resp.ID].VerifiedAt
	again, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, dto.VerifyOutcomeAlreadyVerified, again.Outcome)
	assert.Equal(t, "This report has already been verified. Thank you!", again.Message)
	assert.Equal(t, first, *store.reports[resp.ID].VerifiedAt)
	assert.Len(t, mailer.notifications, 1)
}

func TestVerifyInvalidatesTransparencyCache(t *testing.T) {
	svc, store, _ := newReportServiceFixture()
	cache := &cacheSpy{}
	svc.cache = cache
	resp, err := svc.Submit(context.Background(), validSubmission(), dto.SubmissionMeta{})
	require.NoError(t, err)
	token := store.reports[resp.ID].VerificationToken

	_, err = svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, []string{TransparencyCacheKey}, cache.invalidated)

	_, err = svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Len(t, cache.invalidated, 1)
}

func TestVerifyDeletedReportSkipsAdminNotification(t *testing.T) {
	svc, store, mailer := newReportServiceFixture()
	resp, err := svc.Submit(context.Background(), validSubmission(), dto.SubmissionMeta{})
	require.NoError(t, err)
	deleted := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	store.reports[resp.ID].DeletedAt = &deleted

	result, err := svc.Verify(context.Background(), store.reports[resp.ID].VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, dto.VerifyOutcomeVerified, result.Outcome)
	assert.NotNil(t, store.reports[resp.ID].VerifiedAt)
	assert.Empty(t, mailer.notifications)
}

func TestVerifyConcurrentCallsYieldOneVerified(t *testing.T) {
	svc, store, mailer := newReportServiceFixture()
	resp, err := svc.Submit(context.Background(), validSubmission(), dto.SubmissionMeta{})
	require.NoError(t, err)
	token := store.reports[resp.ID].VerificationToken

	const callers = 8
	outcomes := make(chan dto.VerifyOutcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Verify(context.Background(), token)
			if err == nil {
				outcomes <- result.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	verified := 0
	total := 0
	for o := range outcomes {
		total++
		if o == dto.VerifyOutcomeVerified {
			verified++
		}
	}
	assert.Equal(t, callers, total)
	assert.Equal(t, 1, verified)
	assert.Len(t, mailer.notifications, 1)
}

func TestVerifyUnknownToken(t *testing.T) {
	svc, _, _ := newReportServiceFixture()

	_, err := svc.Verify(context.Background(), "nope")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "Invalid verification link.", appErr.Message)

	_, err = svc.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestVerifyPersistenceFailure(t *testing.T) {
	svc, store, _ := newReportServiceFixture()
	store.verifyErr = errors.New("db down")

	_, err := svc.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestGetReport(t *testing.T) {
	svc, store, _ := newReportServiceFixture()
	deleted := time.Now()
	store.reports["gone"] = &models.Report{ID: "gone", DeletedAt: &deleted}

	report, err := svc.Get(context.Background(), "gone")
	require.NoError(t, err)
	assert.True(t, report.IsDeleted())

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
