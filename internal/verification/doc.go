// Package verification coordinates evidence submissions end to end.
//
// Submit admits evidence into the queue after checking the member's lock
// state and the community's settings. The single queue worker calls
// HandleSubmission, which fetches the evidence, analyzes it, resolves the
// extracted identifier against the directory, applies the ledger transition
// and delivers the resulting Decision through the membership gateway.
// Lockouts open a review case and alert operators.
//
// The package knows nothing about chat platforms. Adapters call Submit and
// the membership hooks over the HTTP API and act on gateway callbacks.
package verification
