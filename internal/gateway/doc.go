// Package gateway carries verification decisions to the chat platform.
//
// The log gateway only records actions; the webhook gateway posts each action
// as JSON to a platform adapter with a bearer token.
package gateway
