// Package payoutengine turns settled tips into monthly payout obligations
// and disburses them through external money-movement rails: bulk mobile
// money for waiters, bank transfer for distribution groups.
//
// Generation is idempotent per (restaurant, month, recipient); disbursement
// is guarded by an atomic pending-to-processing claim so overlapping batch
// runs never double-submit an obligation.
package payoutengine
