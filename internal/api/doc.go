// Package api provides the scheduling and dispatch REST API: schedule CRUD
// with timing-rule enforcement, the day-copy operation, bot instance reads
// and the run lifecycle endpoints the execution subsystem reports through.
package api
