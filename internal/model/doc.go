// Package model defines the application document: students, courses and their
// per-lesson records, calendar events, holidays and time slots.
//
// The whole state is one Data value. It is loaded and saved wholesale by the
// store package and owned by the registry; nothing in this package does I/O.
package model
