// internal/agents/deductible-oop/handler.go
package deductibleoop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	commonerrors "benefits-router/internal/common/errors"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/dispatch"
	"benefits-router/internal/models"
)

const AgentName = "deductible-oop-agent"

const financialsQuery = `
	SELECT member_id, plan_year, deductible_limit_cents, deductible_applied_cents,
	       oop_limit_cents, oop_applied_cents
	FROM member_financials
	WHERE member_id = $1 AND plan_year = $2`

// Handler answers deductible and out-of-pocket questions for the current
// plan year.
type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"agent": AgentName}),
		now:    time.Now,
	}
}

// Descriptor registers this agent with the dispatcher.
func (h *Handler) Descriptor() dispatch.HandlerDescriptor {
	return dispatch.HandlerDescriptor{
		Intent:           models.IntentDeductibleOOP,
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

	planYear := h.now().Year()

	var f Financials
	err := h.db.QueryRowContext(ctx, financialsQuery, memberID, planYear).Scan(
		&f.MemberID, &f.PlanYear,
		&f.DeductibleLimit, &f.DeductibleApplied,
		&f.OOPLimit, &f.OOPApplied,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, commonerrors.NewNotFound("financials",
			fmt.Sprintf("no accumulator record for member %s in plan year %d", memberID, planYear))
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, commonerrors.NewQueryTimeoutError("member_financials")
		}
		return nil, commonerrors.NewQueryExecutionFailedError("member_financials", err)
	}

	f.DeductibleRemaining = f.DeductibleLimit - f.DeductibleApplied
	if f.DeductibleRemaining < 0 {
		f.DeductibleRemaining = 0
	}
	f.OOPRemaining = f.OOPLimit - f.OOPApplied
	if f.OOPRemaining < 0 {
		f.OOPRemaining = 0
	}
	f.DeductibleMet = f.DeductibleApplied >= f.DeductibleLimit
	f.OOPMet = f.OOPApplied >= f.OOPLimit

	return &Output{Financials: f}, nil
}
