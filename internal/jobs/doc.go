// Package jobs runs named periodic jobs on robfig/cron.
//
// A schedule is a cron expression, a Go duration or an HH:MM interval (see
// ParseSchedule). Jobs are registered by name (re-adding a name replaces it),
// never overlap with themselves, and each run is bounded by Config.Timeout.
package jobs
