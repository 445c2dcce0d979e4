// Package admission implements the per-mention validation pipeline: request
// extraction, name resolution, balance and reputation gates, duplicate
// detection, and the final mint-and-reply step. Each mention leaves the
// pipeline with exactly one terminal ledger write and at most one reply.
package admission
