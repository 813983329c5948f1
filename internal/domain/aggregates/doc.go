// Package aggregates declares the escrow write boundaries (settlement,
// dispute, wallet, withdrawal), their inputs and results, and the error codes
// they fail with. Implementations live in internal/data/aggregates.
package aggregates
