// Package lima is a client for the LIMA language service, which routes NLU
// transactions to the configured cognitive service.
//
// Each transaction authenticates with the account credentials and posts the
// input text to /transaction. The conversation session id returned by the
// service is surfaced so callers can thread it into the next request.
package lima
