package httpadapter

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/settlement-core/distribution-engine/application"
	"tippy/contexts/settlement-core/distribution-engine/domain/entities"
	"tippy/contexts/settlement-core/distribution-engine/ports"
	httptransport "tippy/contexts/settlement-core/distribution-engine/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) ConfigureGroupsHandler(
	ctx context.Context,
	restaurantID string,
	req httptransport.ConfigureGroupsRequest,
) (httptransport.GroupListResponse, error) {
	inputs := make([]ports.GroupInput, 0, len(req.Groups))
	for _, group := range req.Groups {
		inputs = append(inputs, ports.GroupInput{
			Name:       group.Name,
			Percentage: decimal.NewFromFloat(group.Percentage),
		})
	}
	groups, err := h.Service.ConfigureGroups(ctx, restaurantID, inputs)
	if err != nil {
		return httptransport.GroupListResponse{}, err
	}
	return toGroupListResponse(groups), nil
}

func (h Handler) ListGroupsHandler(
	ctx context.Context,
	restaurantID string,
) (httptransport.GroupListResponse, error) {
	groups, err := h.Service.ListGroups(ctx, restaurantID)
	if err != nil {
		return httptransport.GroupListResponse{}, err
	}
	return toGroupListResponse(groups), nil
}

func (h Handler) ListTipRecordsHandler(
	ctx context.Context,
	restaurantID string,
	tipID string,
) (httptransport.RecordListResponse, error) {
	records, err := h.Service.ListRecordsByTip(ctx, restaurantID, tipID)
	if err != nil {
		return httptransport.RecordListResponse{}, err
	}
	resp := httptransport.RecordListResponse{
		Status: "success",
		Data:   make([]httptransport.DistributionRecordDTO, 0, len(records)),
	}
	for _, record := range records {
		resp.Data = append(resp.Data, httptransport.DistributionRecordDTO{
			RecordID:  record.ID,
			TipID:     record.TipID,
			GroupName: record.GroupName,
			Amount:    record.Amount.InexactFloat64(),
			CreatedAt: record.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}

func (h Handler) LedgerTotalsHandler(
	ctx context.Context,
	restaurantID string,
	from time.Time,
	to time.Time,
) (httptransport.LedgerTotalsResponse, error) {
	totals, err := h.Service.LedgerTotals(ctx, restaurantID, from, to)
	if err != nil {
		return httptransport.LedgerTotalsResponse{}, err
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := httptransport.LedgerTotalsResponse{
		Status: "success",
		Data:   make([]httptransport.LedgerGroupTotalDTO, 0, len(names)),
	}
	for _, name := range names {
		resp.Data = append(resp.Data, httptransport.LedgerGroupTotalDTO{
			GroupName: name,
			Amount:    totals[name].InexactFloat64(),
		})
	}
	return resp, nil
}

func (h Handler) SaveBankAccountHandler(
	ctx context.Context,
	restaurantID string,
	req httptransport.SaveBankAccountRequest,
) (httptransport.BankAccountResponse, error) {
	account, err := h.Service.SaveBankAccount(
		ctx,
		restaurantID,
		req.GroupName,
		req.BankName,
		req.AccountName,
		req.AccountNumber,
	)
	if err != nil {
		return httptransport.BankAccountResponse{}, err
	}
	return httptransport.BankAccountResponse{
		Status: "success",
		Data: httptransport.BankAccountDTO{
			AccountID:     account.ID,
			RestaurantID:  account.RestaurantID,
			GroupName:     account.GroupName,
			BankName:      account.BankName,
			AccountName:   account.AccountName,
			AccountNumber: account.AccountNumber,
			Verified:      account.Verified,
			Default:       account.Default,
		},
	}, nil
}

func toGroupListResponse(groups []entities.DistributionGroup) httptransport.GroupListResponse {
	resp := httptransport.GroupListResponse{
		Status: "success",
		Data:   make([]httptransport.DistributionGroupDTO, 0, len(groups)),
	}
	for _, group := range groups {
		resp.Data = append(resp.Data, httptransport.DistributionGroupDTO{
			GroupID:       group.ID,
			RestaurantID:  group.RestaurantID,
			Name:          group.Name,
			Percentage:    group.Percentage.InexactFloat64(),
			BankAccountID: group.BankAccountID,
		})
	}
	return resp
}
