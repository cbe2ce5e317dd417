// Package tasks models course pipeline tasks and persists them in SQLite.
//
// A Task is the durable record of one course moving through the fixed step
// order. The Store rewrites the whole task document on every save and guards
// each rewrite with a revision compare-and-swap, so two writers racing on the
// same task cannot silently overwrite each other. Every state transition is
// also appended to an events table that exists for audit and debugging only.
//
// The database is local runtime state. Schema changes bump schemaVersion;
// users delete tasks.db to adopt a new schema.
package tasks
