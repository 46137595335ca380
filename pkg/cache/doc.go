// Package cache provides TTLCache, a bounded in-process memo for short-lived
// lookups such as user profiles and access checks.
//
// Keys are opaque strings built by the caller, for example
// "profile:<user_id>" or "access:<user_id>:<resource_type>:<resource_id>".
//
// An entry is expired once now-CreatedAt exceeds its TTL. Expiry is lazy on
// Get; a periodic Cleanup bounds memory for keys written once and never read
// again. At capacity, inserting a new key evicts exactly one entry, the
// earliest-inserted one still present (approximate FIFO, not LRU).
//
// No operation returns an error or panics on well-formed input. A miss is a
// normal outcome, not a failure.
package cache
