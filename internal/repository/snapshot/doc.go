// Package snapshot persists the frame that triggered an alarm.
//
// FileRepository writes the frame as a BMP image and stores the alarm event
// next to it as a protobuf JSON sidecar, so a snapshot can be inspected
// without the process that produced it.
package snapshot
