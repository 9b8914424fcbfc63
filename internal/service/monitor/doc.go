// Package monitor runs the capture loop of the intruder alarm.
//
// Each cycle acquires a frame, reduces it to its mean brightness, lets the
// alarm machine decide and carries out the resulting directives: driving the
// indicator lines and persisting the triggering frame.
package monitor
