// internal/agents/benefit-accumulator/handler.go
package benefitaccumulator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	commonerrors "benefits-router/internal/common/errors"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/dispatch"
	"benefits-router/internal/models"
)

const AgentName = "benefit-accumulator-agent"

const (
	accumulatorsQuery = `
	SELECT service_type, unit_label, allowed_units, used_units
	FROM benefit_accumulators
	WHERE member_id = $1 AND plan_year = $2
	ORDER BY service_type`

	accumulatorsByServiceQuery = `
	SELECT service_type, unit_label, allowed_units, used_units
	FROM benefit_accumulators
	WHERE member_id = $1 AND plan_year = $2 AND service_type = $3
	ORDER BY service_type`
)

// Handler reports visit and unit consumption against benefit limits. When a
// service_type entity was extracted, the result is narrowed to that service.
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
		Intent:           models.IntentBenefitAccumulator,
		Name:             AgentName,
		RequiredEntities: []models.EntityKey{models.EntityMemberID},
		Invoke:           h.Invoke,
	}
}

// Invoke is the dispatch capability.
func (h *Handler) Invoke(ctx context.Context, req dispatch.Request) (interface{}, error) {
	return h.execute(ctx,
		req.Entities.Get(models.EntityMemberID),
		req.Entities.Get(models.EntityServiceType),
	)
}

func (h *Handler) execute(ctx context.Context, memberID, serviceType string) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	planYear := h.now().Year()

	var rows *sql.Rows
	var err error
	if serviceType != "" {
		rows, err = h.db.QueryContext(ctx, accumulatorsByServiceQuery, memberID, planYear, serviceType)
	} else {
		rows, err = h.db.QueryContext(ctx, accumulatorsQuery, memberID, planYear)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, commonerrors.NewQueryTimeoutError("benefit_accumulators")
		}
		return nil, commonerrors.NewQueryExecutionFailedError("benefit_accumulators", err)
	}
	defer rows.Close()

	output := &Output{
		MemberID: memberID,
		PlanYear: planYear,
	}
	for rows.Next() {
		var a Accumulator
		if err := rows.Scan(&a.ServiceType, &a.UnitLabel, &a.AllowedUnits, &a.UsedUnits); err != nil {
			return nil, commonerrors.NewQueryExecutionFailedError("benefit_accumulators", err)
		}
		a.RemainingUnits = a.AllowedUnits - a.UsedUnits
		if a.RemainingUnits < 0 {
			a.RemainingUnits = 0
		}
		a.Exhausted = a.UsedUnits >= a.AllowedUnits
		output.Accumulators = append(output.Accumulators, a)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewQueryExecutionFailedError("benefit_accumulators", err)
	}

	if len(output.Accumulators) == 0 {
		detail := fmt.Sprintf("no benefit accumulators for member %s in plan year %d", memberID, planYear)
		if serviceType != "" {
			detail = fmt.Sprintf("no %s accumulator for member %s in plan year %d", serviceType, memberID, planYear)
		}
		return nil, commonerrors.NewNotFound("benefit_accumulator", detail)
	}

	return output, nil
}
