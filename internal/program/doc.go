// Package program holds the plan lifecycle and progress rules for a user's
// exercise program.
//
// Everything here is pure: functions take a models.UserRecord (or its parts)
// and return a new value. Persistence, clocks and concurrency control belong
// to the caller; see internal/tracker for the adapter that pairs these rules
// with a storage.Store.
//
// A record's program slot moves through these states:
//
//	[no plan] --AcceptPlan--> [active, week 1, 0 sessions]
//	[active]  --RecordSession (not last)--> [active, counters updated]
//	[active]  --RecordSession (last)--> [no plan], history += Completed
//	[active]  --AcceptPlan--> history += Replaced, [active, new plan]
package program
