// Package ingest talks to the ingestion collaborator over HTTP.
//
//	GET  /telemetry       -> JSON array of readings
//	GET  /stats           -> {"critical":n,"warning":n,"normal":n}
//	POST /inject_anomaly  <- {"type":"battery"|"temp"|"comm"}
//
// Every transport, status or framing failure is returned wrapped in
// ErrIngestion so callers can keep their previous window with a single
// errors.Is check.
//
// Decoding is lenient per reading: a reading missing a required numeric
// field or carrying an unparsable timestamp is rejected with a
// MalformedReadingError and counted, and the rest of the batch is kept.
// Missing model flags decode as false, and CombinedFlag is always
// recomputed from its contributing flags.
package ingest
