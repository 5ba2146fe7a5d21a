// Package models defines the JSON request and response shapes of the settlement API.
//
// # Amounts
//
// Monetary fields are decimal currency values (e.g. "30.00", "12,34" or 30).
// They are kept as text (see Amount) so no precision is lost before the
// service converts them to minor units. Responses always render amounts as
// strings with the configured number of decimal places.
//
// # Members
//
// Members are identified by an opaque ID supplied by the caller. Name is a
// display label only. The API keeps no state: every request carries the full
// set of balances or expenses to settle.
package models
