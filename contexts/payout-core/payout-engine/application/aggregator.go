package application

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/payout-core/payout-engine/domain/entities"
	domainerrors "tippy/contexts/payout-core/payout-engine/domain/errors"
	"tippy/contexts/payout-core/payout-engine/domain/services"
)

type GenerateInput struct {
	RestaurantID string
	Month        string
	Preview      bool
}

// PlanItem is one recipient's computed monthly obligation before any row
// is written. Sub-threshold recipients appear in the plan with
// MeetsMinimum=false so operators can see what was dropped.
type PlanItem struct {
	Recipient    entities.RecipientKind
	RecipientKey string
	TotalTips    decimal.Decimal
	Commission   decimal.Decimal
	Amount       decimal.Decimal
	TipCount     int
	MeetsMinimum bool
}

const (
	GenerateItemCreated       = "created"
	GenerateItemExists        = "exists"
	GenerateItemFailed        = "failed"
	GenerateItemBelowMinimum  = "below_minimum"
	GenerateItemZeroAllotment = "zero_allotment"
)

type GenerateItemResult struct {
	Recipient    entities.RecipientKind
	RecipientKey string
	Amount       decimal.Decimal
	Status       string
	PayoutID     string
	Error        string
}

type GenerateResult struct {
	RestaurantID string
	Month        string
	Preview      bool
	Plan         []PlanItem
	Items        []GenerateItemResult
	CreatedCount int
	FailedCount  int
	TotalAmount  decimal.Decimal
}

// Generate re-sums the month's completed tips and turns them into
// pending payout rows, one per recipient. Inserts are applied one by one
// and reported per item; a partial run leaves the created rows in place
// rather than rolling back, and a re-run fills only the gaps because the
// (restaurant, month, recipient) constraint rejects duplicates.
func (s Service) Generate(ctx context.Context, input GenerateInput) (GenerateResult, error) {
	restaurantID := strings.TrimSpace(input.RestaurantID)
	month := strings.TrimSpace(input.Month)
	if restaurantID == "" {
		return GenerateResult{}, domainerrors.ErrInvalidPayoutInput
	}
	from, to, err := entities.ParseMonth(month)
	if err != nil {
		return GenerateResult{}, err
	}

	if !input.Preview {
		existing, err := s.Payouts.CountPayoutsForMonth(ctx, restaurantID, month)
		if err != nil {
			return GenerateResult{}, err
		}
		if existing > 0 {
			return GenerateResult{}, domainerrors.ErrPayoutsAlreadyExist
		}
	}

	plan, err := s.buildPlan(ctx, restaurantID, from, to)
	if err != nil {
		return GenerateResult{}, err
	}

	result := GenerateResult{
		RestaurantID: restaurantID,
		Month:        month,
		Preview:      input.Preview,
		Plan:         plan,
		TotalAmount:  decimal.Zero,
	}
	if input.Preview {
		for _, item := range plan {
			if item.MeetsMinimum {
				result.TotalAmount = result.TotalAmount.Add(item.Amount)
			}
		}
		return result, nil
	}

	now := s.now()
	for _, item := range plan {
		if !item.MeetsMinimum {
			status := GenerateItemBelowMinimum
			if item.Amount.IsZero() {
				status = GenerateItemZeroAllotment
			}
			result.Items = append(result.Items, GenerateItemResult{
				Recipient:    item.Recipient,
				RecipientKey: item.RecipientKey,
				Amount:       item.Amount,
				Status:       status,
			})
			continue
		}

		id, err := s.IDGen.NewID(ctx)
		if err != nil {
			return result, err
		}
		payout, err := entities.NewPayout(
			id,
			restaurantID,
			item.Recipient,
			item.RecipientKey,
			month,
			item.TotalTips,
			item.Commission,
			item.Amount,
			item.TipCount,
			now,
		)
		if err != nil {
			result.FailedCount++
			result.Items = append(result.Items, GenerateItemResult{
				Recipient:    item.Recipient,
				RecipientKey: item.RecipientKey,
				Amount:       item.Amount,
				Status:       GenerateItemFailed,
				Error:        err.Error(),
			})
			continue
		}

		switch err := s.Payouts.CreatePayout(ctx, payout); {
		case err == nil:
			result.CreatedCount++
			result.TotalAmount = result.TotalAmount.Add(payout.Amount)
			result.Items = append(result.Items, GenerateItemResult{
				Recipient:    item.Recipient,
				RecipientKey: item.RecipientKey,
				Amount:       payout.Amount,
				Status:       GenerateItemCreated,
				PayoutID:     payout.ID,
			})
		case errors.Is(err, domainerrors.ErrPayoutExists):
			result.Items = append(result.Items, GenerateItemResult{
				Recipient:    item.Recipient,
				RecipientKey: item.RecipientKey,
				Amount:       item.Amount,
				Status:       GenerateItemExists,
			})
		default:
			result.FailedCount++
			result.Items = append(result.Items, GenerateItemResult{
				Recipient:    item.Recipient,
				RecipientKey: item.RecipientKey,
				Amount:       item.Amount,
				Status:       GenerateItemFailed,
				Error:        err.Error(),
			})
		}
	}

	ResolveLogger(s.Logger).Info("monthly payouts generated",
		"event", "payouts_generated",
		"module", moduleName,
		"layer", "application",
		"restaurant_id", restaurantID,
		"month", month,
		"created", result.CreatedCount,
		"failed", result.FailedCount,
		"total_amount", result.TotalAmount.String(),
	)
	return result, nil
}

func (s Service) buildPlan(
	ctx context.Context,
	restaurantID string,
	from time.Time,
	to time.Time,
) ([]PlanItem, error) {
	minimum := s.minimum()

	waiterTotals, err := s.Tips.WaiterTotals(ctx, restaurantID, from, to)
	if err != nil {
		return nil, err
	}
	plan := make([]PlanItem, 0, len(waiterTotals))
	for _, total := range waiterTotals {
		plan = append(plan, PlanItem{
			Recipient:    entities.RecipientWaiter,
			RecipientKey: total.WaiterID,
			TotalTips:    total.TotalTips,
			Commission:   total.Commission,
			Amount:       total.Net,
			TipCount:     total.TipCount,
			MeetsMinimum: services.MeetsMinimum(total.Net, minimum),
		})
	}

	// Group allotments come off the restaurant-wide net using the
	// percentages configured right now, not the percentages in force when
	// each tip settled.
	wide, err := s.Tips.RestaurantWideTotal(ctx, restaurantID, from, to)
	if err != nil {
		return nil, err
	}
	shares, err := s.Groups.ListGroupShares(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	for _, share := range shares {
		amount := services.GroupShare(wide.Net, share.Percentage)
		plan = append(plan, PlanItem{
			Recipient:    entities.RecipientGroup,
			RecipientKey: share.Name,
			TotalTips:    wide.TotalTips,
			Commission:   wide.Commission,
			Amount:       amount,
			TipCount:     wide.TipCount,
			MeetsMinimum: services.MeetsMinimum(amount, minimum),
		})
	}

	sortPlan(plan)
	return plan, nil
}

func (s Service) minimum() decimal.Decimal {
	if s.MinimumAmount.IsZero() {
		return services.MinimumPayoutAmount
	}
	return s.MinimumAmount
}

func sortPlan(plan []PlanItem) {
	sort.SliceStable(plan, func(i, j int) bool {
		if plan[i].Recipient != plan[j].Recipient {
			return plan[i].Recipient == entities.RecipientWaiter
		}
		return plan[i].RecipientKey < plan[j].RecipientKey
	})
}
