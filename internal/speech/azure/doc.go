// Package azure implements the hub's speech providers on the Azure speech
// REST APIs.
//
// Speech recognition streams audio to the short-audio recognition endpoint
// with a chunked upload. Synthesis posts SSML and returns the audio body.
// Both authenticate with a bearer token from the issueToken endpoint, cached
// for most of its ten minute lifetime.
package azure
