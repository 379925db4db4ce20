// Package notificationscheduler decides when payout notifications are
// owed and records them as intents. Upcoming-payout notices fire a fixed
// number of days before month end; processed and failed notices are
// derived from disbursement events. Intents are deduplicated, never
// sent: delivery belongs to a downstream channel service.
package notificationscheduler
