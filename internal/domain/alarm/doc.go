// Package alarm contains the deviation alarm state machine.
//
// A Machine owns the rolling brightness history and decides, one measure at
// a time, whether the scene is calm (Monitoring) or an intruder has been
// detected (Alarmed). Every decision carries the Directives the caller must
// carry out: persist the triggering frame and drive the two indicator lines.
package alarm
