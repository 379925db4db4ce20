// Package tipsettlement contains the Tippy tip lifecycle: intake of a
// gratuity, reconciliation of payment-provider callbacks into a terminal
// tip state, and the commission split applied at settlement time.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package tipsettlement
