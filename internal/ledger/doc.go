// Package ledger tracks verification attempts and lockouts per member.
//
// A record moves through Open(n), LockedAwaitingAdmin and LockedUntilRejoin.
// The transition rules live in Apply; repositories only persist records and
// serialize concurrent updates. SQLite is the default store, with memory,
// PostgreSQL and Redis backends selectable through the ledger config section.
package ledger
