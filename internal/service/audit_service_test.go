package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
)

type auditRepoStub struct {
	created  []models.AuditLog
	batches  [][]models.AuditLog
	filter   models.AuditLogFilter
	list     []models.AuditLog
	err      error
	batchErr error
}

func (s *auditRepoStub) Create(ctx context.Context, entry *models.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, *entry)
	return nil
}

func (s *auditRepoStub) CreateTx(ctx context.Context, tx *sqlx.Tx, entry *models.AuditLog) error {
	return s.Create(ctx, entry)
}

func (s *auditRepoStub) CreateBatchTx(ctx context.Context, tx *sqlx.Tx, entries []models.AuditLog) error {
	if s.batchErr != nil {
		return s.batchErr
	}
	s.batches = append(s.batches, entries)
	return nil
}

func (s *auditRepoStub) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	s.filter = filter
	return s.list, len(s.list), s.err
}

func TestAuditServiceRecordValidates(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, nil)

	_, err := svc.Record(context.Background(), AuditEntry{Action: "report_updated"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Len(t, appErr.Details, 3)
	assert.Empty(t, repo.created)
}

func TestAuditServiceRecord(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, nil)

	log, err := svc.Record(context.Background(), AuditEntry{
		ReportID: "r1",
		Actor:    models.Actor{UserID: "u1", IP: "10.0.0.1"},
		Action:   models.AuditActionReportDeleted,
	})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", log.IPAddress)
	require.Len(t, repo.created, 1)
	assert.NotNil(t, repo.created[0].Metadata)
}

func TestAuditServiceRecordBatchRejectsWholeBatch(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, nil)
	actor := models.Actor{UserID: "u1"}

	_, err := svc.RecordBatchTx(context.Background(), nil, []AuditEntry{
		{ReportID: "r1", Actor: actor, Action: models.AuditActionReportExported},
		{ReportID: "", Actor: actor, Action: models.AuditActionReportExported},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, repo.batches)

	logs, err := svc.RecordBatchTx(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Empty(t, repo.batches)
}

func TestAuditServiceRecordPersistenceFailure(t *testing.T) {
	repo := &auditRepoStub{err: errors.New("db down")}
	svc := NewAuditService(repo, nil)

	_, err := svc.Record(context.Background(), AuditEntry{ReportID: "r1", Actor: models.Actor{UserID: "u1"}, Action: models.AuditActionReportApproved})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestAuditServiceList(t *testing.T) {
	repo := &auditRepoStub{list: []models.AuditLog{{ID: "a"}}}
	svc := NewAuditService(repo, nil)

	logs, pagination, err := svc.List(context.Background(), dto.AuditLogQuery{Action: "report_approved"})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 25, pagination.PageSize)
	assert.Equal(t, models.AuditActionReportApproved, repo.filter.Action)

	_, _, err = svc.List(context.Background(), dto.AuditLogQuery{Action: "report_updated"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
