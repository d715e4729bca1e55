// Package catalog talks to the remote catalog API. Every operation is a
// single HTTP GET with a fixed per-call timeout; the outcome is classified
// as a decoded value or a soft Failure. Nothing in this package retries,
// and no failure escalates past it.
package catalog
