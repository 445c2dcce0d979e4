// Package mention defines the durable mention ledger: the single source of
// truth for which mentions have been acted on and which identities already
// received a mint. Every write is flushed to stable storage before it
// returns, so a crash never loses an acknowledged terminal outcome.
package mention
