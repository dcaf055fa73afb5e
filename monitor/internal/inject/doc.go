// Package inject issues demo anomaly injection commands.
//
// A Controller picks the next anomaly kind with a Selector and sends it
// through an Injector on its own goroutine with a bounded timeout. Callers
// never wait for the outcome; failures are logged and counted in Stats.
//
// Two Injector transports exist: the HTTP ingestion client
// (POST /inject_anomaly) and MQTTInjector, which publishes the same
// {"type": kind} body to a broker topic.
package inject
