package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"sitecraft/internal/common"
	"sitecraft/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type JobServiceTestSuite struct {
	suite.Suite
	jobs     *MockJobRepository
	logs     *MockJobLogRepository
	enqueuer *MockTaskEnqueuer
	service  JobService
}

func (suite *JobServiceTestSuite) SetupTest() {
	suite.jobs = &MockJobRepository{}
	suite.logs = &MockJobLogRepository{}
	suite.enqueuer = &MockTaskEnqueuer{}
	suite.service = NewJobService(suite.jobs, suite.logs, suite.enqueuer)
}

func (suite *JobServiceTestSuite) TearDownTest() {
	suite.jobs.AssertExpectations(suite.T())
	suite.logs.AssertExpectations(suite.T())
	suite.enqueuer.AssertExpectations(suite.T())
}

func TestJobServiceTestSuite(t *testing.T) {
	suite.Run(t, new(JobServiceTestSuite))
}

func (suite *JobServiceTestSuite) TestEnqueue_Success() {
	ctx := context.Background()
	tenantID, siteID := uuid.New(), uuid.New()

	suite.jobs.On("Create", ctx, mock.MatchedBy(func(j *models.Job) bool {
		var p models.JobPayload
		return j.Status == models.JobStatusQueued && j.Type == models.JobTypeGenerate &&
			json.Unmarshal(j.Payload, &p) == nil && p.SiteID == siteID
	})).Return(nil)
	suite.enqueuer.On("EnqueueJob", ctx, mock.AnythingOfType("*models.Job")).Return("task-1", nil)
	suite.jobs.On("SetTaskID", ctx, mock.AnythingOfType("uuid.UUID"), "task-1").Return(nil)

	job, err := suite.service.Enqueue(ctx, tenantID, &siteID, models.JobTypeGenerate, models.JobPayload{SiteID: siteID})

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), job.QueueTaskID)
	assert.Equal(suite.T(), "task-1", *job.QueueTaskID)
	assert.Equal(suite.T(), tenantID, job.TenantID)
}

func (suite *JobServiceTestSuite) TestEnqueue_QueueDownMarksFailed() {
	ctx := context.Background()
	suite.jobs.On("Create", ctx, mock.Anything).Return(nil)
	suite.enqueuer.On("EnqueueJob", ctx, mock.Anything).Return("", errors.New("redis: connection refused"))
	suite.jobs.On("MarkFailed", ctx, mock.AnythingOfType("uuid.UUID"), mock.MatchedBy(func(msg string) bool {
		return msg == "enqueue failed: redis: connection refused"
	})).Return(nil)

	_, err := suite.service.Enqueue(ctx, uuid.New(), nil, models.JobTypeProvision, models.JobPayload{})

	assert.Error(suite.T(), err)
}

func (suite *JobServiceTestSuite) TestEnqueue_TaskIDFailureIsNotFatal() {
	ctx := context.Background()
	suite.jobs.On("Create", ctx, mock.Anything).Return(nil)
	suite.enqueuer.On("EnqueueJob", ctx, mock.Anything).Return("task-2", nil)
	suite.jobs.On("SetTaskID", ctx, mock.Anything, "task-2").Return(errors.New("db blip"))

	job, err := suite.service.Enqueue(ctx, uuid.New(), nil, models.JobTypePublish, models.JobPayload{})

	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), job.QueueTaskID)
}

func (suite *JobServiceTestSuite) TestLogs_ChecksTenant() {
	ctx := context.Background()
	tenantID, jobID := uuid.New(), uuid.New()
	suite.jobs.On("GetForTenant", ctx, tenantID, jobID).Return(nil, common.ErrNotFound)

	_, err := suite.service.Logs(ctx, tenantID, jobID, 50, 0)

	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
	suite.logs.AssertNotCalled(suite.T(), "ListByJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *JobServiceTestSuite) TestLogs() {
	ctx := context.Background()
	tenantID, jobID := uuid.New(), uuid.New()
	lines := []*models.JobLog{{JobID: jobID, Level: models.LogLevelInfo, Message: "wp core download"}}
	suite.jobs.On("GetForTenant", ctx, tenantID, jobID).Return(&models.Job{ID: jobID}, nil)
	suite.logs.On("ListByJob", ctx, jobID, 50, 0).Return(lines, nil)

	got, err := suite.service.Logs(ctx, tenantID, jobID, 50, 0)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), lines, got)
}

func (suite *JobServiceTestSuite) TestLog_NormalizesLevelAndSwallowsErrors() {
	ctx := context.Background()
	jobID := uuid.New()
	suite.logs.On("Create", ctx, mock.MatchedBy(func(e *models.JobLog) bool {
		return e.JobID == jobID && e.Level == models.LogLevelInfo && e.Message == "hello"
	})).Return(errors.New("insert failed"))

	suite.service.Log(ctx, jobID, "verbose", "hello")
}
