// Package chain declares the read-only blockchain interfaces the orchestrator
// consumes: balance lookups, transaction receipts, token metadata reads, and
// name resolution. Concrete EVM implementations live in the ethereum
// subpackage.
package chain
