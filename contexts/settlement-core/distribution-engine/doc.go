// Package distributionengine splits a settled restaurant-wide tip's net
// amount across the restaurant's configured recipient groups and owns the
// group/bank-account configuration those splits depend on.
package distributionengine
