// Package registry implements the application operations over the document:
// students, courses and their schedules, per-lesson records, the holiday
// calendar, time slots and events.
//
// All mutations go through one path: validate, change a copy, save it, swap it
// in, append an audit entry and publish an eventbus.Event. A failed save leaves
// the visible document unchanged.
package registry
