// Package harvest implements the composable harvesting engine, including the
// enricher, admission gate, page processor, dedup ledger, and orchestrator
// used by the OpenLibrary harvester.
package harvest
