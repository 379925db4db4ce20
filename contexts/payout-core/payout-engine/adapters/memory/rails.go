package memory

import (
	"context"
	"strconv"
	"sync"

	"tippy/contexts/payout-core/payout-engine/ports"
)

// MobileMoneyRail is an in-process stand-in for the bulk payment
// provider. Every accepted submission gets a deterministic conversation
// ID so tests can drive the asynchronous callback path.
type MobileMoneyRail struct {
	mu          sync.Mutex
	submissions []ports.MobileMoneySubmission
	rejected    map[string]string
	counter     int
}

func NewMobileMoneyRail() *MobileMoneyRail {
	return &MobileMoneyRail{rejected: make(map[string]string)}
}

// RejectPhone makes submissions to the given phone fail synchronously.
func (r *MobileMoneyRail) RejectPhone(phone string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[phone] = reason
}

func (r *MobileMoneyRail) SubmitBulkPayment(
	_ context.Context,
	submission ports.MobileMoneySubmission,
) (ports.RailAcceptance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reason, ok := r.rejected[submission.Phone]; ok {
		return ports.RailAcceptance{
			Accepted:      false,
			FailureCode:   "mm_rejected",
			FailureReason: reason,
		}, nil
	}
	r.counter++
	r.submissions = append(r.submissions, submission)
	return ports.RailAcceptance{
		Accepted:       true,
		ConversationID: "mm-conv-" + strconv.Itoa(r.counter),
	}, nil
}

// Submissions returns a copy for test assertions.
func (r *MobileMoneyRail) Submissions() []ports.MobileMoneySubmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.MobileMoneySubmission(nil), r.submissions...)
}

// BankTransferRail is an in-process stand-in for the bank transfer
// provider.
type BankTransferRail struct {
	mu          sync.Mutex
	submissions []ports.BankTransferSubmission
	rejected    map[string]string
	counter     int
}

func NewBankTransferRail() *BankTransferRail {
	return &BankTransferRail{rejected: make(map[string]string)}
}

// RejectAccount makes transfers to the given account number fail
// synchronously.
func (r *BankTransferRail) RejectAccount(accountNumber string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[accountNumber] = reason
}

func (r *BankTransferRail) SubmitTransfer(
	_ context.Context,
	submission ports.BankTransferSubmission,
) (ports.RailAcceptance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reason, ok := r.rejected[submission.Account.AccountNumber]; ok {
		return ports.RailAcceptance{
			Accepted:      false,
			FailureCode:   "transfer_rejected",
			FailureReason: reason,
		}, nil
	}
	r.counter++
	r.submissions = append(r.submissions, submission)
	return ports.RailAcceptance{
		Accepted:       true,
		ConversationID: "bt-conv-" + strconv.Itoa(r.counter),
	}, nil
}

// Submissions returns a copy for test assertions.
func (r *BankTransferRail) Submissions() []ports.BankTransferSubmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.BankTransferSubmission(nil), r.submissions...)
}

// RailStatusStub answers out-of-band status queries from a fixed table,
// for reconciliation tests.
type RailStatusStub struct {
	mu       sync.Mutex
	statuses map[string]ports.RailStatus
}

func NewRailStatusStub() *RailStatusStub {
	return &RailStatusStub{statuses: make(map[string]ports.RailStatus)}
}

func (r *RailStatusStub) SetStatus(conversationID string, status ports.RailStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[conversationID] = status
}

func (r *RailStatusStub) QueryStatus(_ context.Context, conversationID string) (ports.RailStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.statuses[conversationID]
	if !ok {
		return ports.RailStatus{}, nil
	}
	return status, nil
}

var _ ports.MobileMoneyRail = (*MobileMoneyRail)(nil)
var _ ports.BankTransferRail = (*BankTransferRail)(nil)
var _ ports.RailStatusQuery = (*RailStatusStub)(nil)
