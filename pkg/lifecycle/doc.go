// Package lifecycle sequences serving generations.
//
// A generation is one complete serving stack: the fetched type
// definitions, the schema built from them, a database connection and a
// bound listener. The Orchestrator boots a generation in that order,
// arms a drift poller once it is live and, when the poller reports a
// change, boots a successor while the old generation keeps serving. The
// successor replaces the old generation atomically once it is live, and
// the old one drains in the background: poller first, then listener,
// then connection.
//
// A hard stop drains every generation and starts no successor.
package lifecycle
