// Package model defines the command and message types exchanged between the
// hub, devices and controllers.
//
// Conventions:
//   - Timestamps: int64 milliseconds since Unix epoch (hub clock)
//   - IDs: uuid strings for hub-originated commands
//   - Payloads: kept as raw JSON until a handler decodes the fields it needs
package model
