// internal/agents/member-verification/handler.go
package memberverification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"benefits-router/internal/common/database"
	commonerrors "benefits-router/internal/common/errors"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/dispatch"
	"benefits-router/internal/models"
)

const AgentName = "member-verification-agent"

const memberLookupQuery = `
	SELECT member_id, first_name, last_name, plan_code, status, effective_date, termination_date
	FROM members
	WHERE member_id = $1`

// Handler verifies member enrollment. Lookups hit a Redis read-through
// cache before Postgres; a cache outage degrades to database-only reads and
// never fails the request.
type Handler struct {
	config *Config
	db     *sql.DB
	cache  *database.RedisClient
	logger logger.Logger
}

// NewHandler builds the agent. cache may be nil to disable caching.
func NewHandler(config *Config, db *sql.DB, cache *database.RedisClient, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"agent": AgentName}),
	}
}

// Descriptor registers this agent with the dispatcher.
func (h *Handler) Descriptor() dispatch.HandlerDescriptor {
	return dispatch.HandlerDescriptor{
		Intent:           models.IntentMemberVerification,
		Name:             AgentName,
		RequiredEntities: []models.EntityKey{models.EntityMemberID},
		Invoke:           h.Invoke,
	}
}

// Invoke is the dispatch capability.
func (h *Handler) Invoke(ctx context.Context, req dispatch.Request) (interface{}, error) {
	return h.execute(ctx, req.Entities.Get(models.EntityMemberID))
}

func (h *Handler) execute(ctx context.Context, memberID string) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	key := cacheKey(memberID)
	if h.cache != nil {
		var cached Output
		err := h.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			cached.Source = "cache"
			return &cached, nil
		}
		if !errors.Is(err, redis.Nil) {
			h.logger.Warn("member cache read failed, falling back to database", map[string]interface{}{
				"memberId": memberID,
				"error":    err.Error(),
			})
		}
	}

	var m Member
	var termination sql.NullTime
	err := h.db.QueryRowContext(ctx, memberLookupQuery, memberID).Scan(
		&m.MemberID, &m.FirstName, &m.LastName, &m.PlanCode, &m.Status,
		&m.EffectiveDate, &termination,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, commonerrors.NewNotFound("member", fmt.Sprintf("no enrollment record for member %s", memberID))
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, commonerrors.NewQueryTimeoutError("member_lookup")
		}
		return nil, commonerrors.NewQueryExecutionFailedError("member_lookup", err)
	}
	if termination.Valid {
		t := termination.Time
		m.TerminationDate = &t
	}

	output := &Output{
		Member: m,
		Active: strings.EqualFold(m.Status, "active"),
		Source: "database",
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, key, output, h.config.CacheTTL); err != nil {
			h.logger.Warn("member cache write failed", map[string]interface{}{
				"memberId": memberID,
				"error":    err.Error(),
			})
		}
	}

	return output, nil
}

func cacheKey(memberID string) string {
	return "member:verify:" + memberID
}
