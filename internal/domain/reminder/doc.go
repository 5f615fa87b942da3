// Package reminder computes when reminders are due.
//
// Everything here is a pure function of its inputs: vaccination next-due
// dates and milestones, weight-based daily food rations, and package
// depletion dates. Dates use calendar-day arithmetic in the clinic's time
// zone; callers pass the *time.Location explicitly.
package reminder
