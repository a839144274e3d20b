// Package keys provides keyring files and payload signing helpers.
//
// A keyring is a small JSON file (keyring.json) kept next to the sealed
// records of one installation. It is written by the operator with
// `sealsweep keygen` and is only ever read for the duration of one run.
package keys
