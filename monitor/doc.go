// Package monitor runs the periodic session check.
//
// A Monitor owns at most one ticker at a time. Start replaces any previous
// run and Stop is safe to call from inside the tick callback, which lets a
// tick that ends the session stop its own monitor without deadlocking.
package monitor
