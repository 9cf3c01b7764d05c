// Package schedule generates course lesson dates.
//
// A schedule is derived from a start date, a lesson count, a cadence and a set of
// blackout dates (holidays):
//   - Weekly cadence: one lesson per week on a fixed weekday (Fri/Sat/Sun).
//     A blackout drops that week's lesson; the course resumes one week later.
//   - Intensive cadence: "work N days, rest M days" blocks. A blackout inside a
//     work block still uses up one of the N days but produces no lesson.
//
// Generation is pure: no I/O, no shared state, identical input gives identical
// output. Every call either returns exactly TotalLessons dates or fails with an
// error; the walk is bounded so a blackout set that blocks every candidate day
// cannot loop forever.
package schedule
