// Package aggregates implements the escrow write boundaries on gorm.
//
// Each aggregate locks the rows it needs (order, escrow, then wallets in
// ascending user order), applies domain transitions in memory and persists
// them with version checks inside a single transaction. Callers get
// *domain/aggregates.Error values; MapError translates domain kinds and
// Postgres codes.
package aggregates
