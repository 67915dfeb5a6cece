// Package projection builds the supply-chain read model from ledger events.
//
// Read models are intentionally separate from the contract that emits the
// events: the ledger is the write side, projection code transforms its
// immutable log into query-friendly entities (products, supply-chain steps,
// disputes, carbon offsets, user balances).
//
// The projector is the only writer. It applies events strictly in arrival
// order, detects redelivered events by (txHash, logIndex), and commits each
// event's mutations together with its idempotency mark in one transaction,
// so at-least-once delivery never double-applies an accumulating balance.
package projection
