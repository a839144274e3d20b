// Package model defines the boundary types that flow between pipeline stages.
//
// Record and Key values are only ever held in memory for a single run.
// Profile is the only type intended for direct JSON serialization by
// consumers (output tree, webhook payloads).
package model
