// Package token issues and stores the single-use tokens behind email
// verification, password reset and email-delivered 2FA codes, plus the
// one-shot 2FA confirmations that let a login complete.
//
// At most one token exists per (kind, identity). Verification tokens are keyed
// by user id when one is known, everything else by email. Issuing replaces the
// current token atomically, and Consume succeeds for exactly one caller.
//
// Three Store implementations share one contract: MemoryStore for tests and
// single-process use, PostgresStore on the auth_tokens table, and RedisStore
// using Lua scripts for the replace and consume steps. NewStores picks one by
// persistence type.
package token
