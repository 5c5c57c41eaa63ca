// Package rate throttles failed logins with Redis fixed-window counters.
//
// Each failure runs INCR on "<prefix>:login:<email>" and sets EXPIRE on the
// first hit of a window. A login is refused while the counter exceeds the
// attempt budget.
package rate
