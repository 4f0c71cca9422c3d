// internal/agents/member-verification/handler_test.go
package memberverification

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benefits-router/internal/common/database"
	commonerrors "benefits-router/internal/common/errors"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/dispatch"
	"benefits-router/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:  5 * time.Second,
		CacheTTL: time.Minute,
	}
}

func memberColumns() []string {
	return []string{
		"member_id", "first_name", "last_name", "plan_code",
		"status", "effective_date", "termination_date",
	}
}

func expectMemberRow(mock sqlmock.Sqlmock, memberID, status string, terminated *time.Time) {
	effective := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var termination interface{}
	if terminated != nil {
		termination = *terminated
	}
	row := sqlmock.NewRows(memberColumns()).
		AddRow(memberID, "Jane", "Doe", "PPO-GOLD", status, effective, termination)
	mock.ExpectQuery(`FROM members WHERE member_id = \$1`).
		WithArgs(memberID).
		WillReturnRows(row)
}

func memberRequest(memberID string) dispatch.Request {
	return dispatch.Request{
		Query:    "Is member " + memberID + " active?",
		Entities: models.EntitySet{models.EntityMemberID: memberID},
	}
}

// ==========================
// Database Lookups
// ==========================

func TestInvoke_ActiveMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectMemberRow(mock, "M1001", "active", nil)

	h := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	payload, err := h.Invoke(context.Background(), memberRequest("M1001"))
	require.NoError(t, err)

	output, ok := payload.(*Output)
	require.True(t, ok)
	assert.True(t, output.Active)
	assert.Equal(t, "M1001", output.Member.MemberID)
	assert.Equal(t, "PPO-GOLD", output.Member.PlanCode)
	assert.Equal(t, "database", output.Source)
	assert.Nil(t, output.Member.TerminationDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoke_TerminatedMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	terminated := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	expectMemberRow(mock, "M2002", "terminated", &terminated)

	h := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	payload, err := h.Invoke(context.Background(), memberRequest("M2002"))
	require.NoError(t, err)

	output := payload.(*Output)
	assert.False(t, output.Active)
	require.NotNil(t, output.Member.TerminationDate)
	assert.Equal(t, terminated, *output.Member.TerminationDate)
}

func TestInvoke_StatusComparisonIsCaseInsensitive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectMemberRow(mock, "M3003", "ACTIVE", nil)

	h := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	payload, err := h.Invoke(context.Background(), memberRequest("M3003"))
	require.NoError(t, err)
	assert.True(t, payload.(*Output).Active)
}

func TestInvoke_UnknownMemberIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM members WHERE member_id = \$1`).
		WithArgs("M9999").
		WillReturnError(sql.ErrNoRows)

	h := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	_, err = h.Invoke(context.Background(), memberRequest("M9999"))

	var notFound *commonerrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "member", notFound.Resource)
	assert.Equal(t, false, notFound.Payload["found"])
}

func TestInvoke_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM members WHERE member_id = \$1`).
		WithArgs("M1001").
		WillReturnError(errors.New("connection reset"))

	h := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	_, err = h.Invoke(context.Background(), memberRequest("M1001"))
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeQueryExecutionFailed))
}

// ==========================
// Cache Behavior
// ==========================

func TestInvoke_SecondLookupServedFromCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	cache := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	// Only one database round trip is expected across both calls.
	expectMemberRow(mock, "M1001", "active", nil)

	h := NewHandler(createTestConfig(), db, cache, logger.NewTestLogger(t))

	first, err := h.Invoke(context.Background(), memberRequest("M1001"))
	require.NoError(t, err)
	assert.Equal(t, "database", first.(*Output).Source)

	second, err := h.Invoke(context.Background(), memberRequest("M1001"))
	require.NoError(t, err)
	assert.Equal(t, "cache", second.(*Output).Source)
	assert.Equal(t, first.(*Output).Member, second.(*Output).Member)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoke_CacheEntryExpires(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	cache := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	expectMemberRow(mock, "M1001", "active", nil)
	h := NewHandler(createTestConfig(), db, cache, logger.NewTestLogger(t))

	_, err = h.Invoke(context.Background(), memberRequest("M1001"))
	require.NoError(t, err)

	// Past the TTL the entry is gone and the database is hit again.
	mr.FastForward(2 * time.Minute)
	expectMemberRow(mock, "M1001", "active", nil)

	payload, err := h.Invoke(context.Background(), memberRequest("M1001"))
	require.NoError(t, err)
	assert.Equal(t, "database", payload.(*Output).Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoke_CacheOutageDegradesToDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	redisMock.ExpectGet(cacheKey("M1001")).SetErr(errors.New("broken pipe"))
	cache := database.NewRedisFromClient(redisClient)

	expectMemberRow(mock, "M1001", "active", nil)

	h := NewHandler(createTestConfig(), db, cache, logger.NewTestLogger(t))

	payload, err := h.Invoke(context.Background(), memberRequest("M1001"))
	require.NoError(t, err, "a cache outage must never fail the lookup")
	assert.Equal(t, "database", payload.(*Output).Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Descriptor
// ==========================

func TestDescriptor(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, nil, logger.NewTestLogger(t))

	d := h.Descriptor()
	assert.Equal(t, models.IntentMemberVerification, d.Intent)
	assert.Equal(t, AgentName, d.Name)
	assert.Equal(t, []models.EntityKey{models.EntityMemberID}, d.RequiredEntities)
	assert.NotNil(t, d.Invoke)
}
