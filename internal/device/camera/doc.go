// Package camera supplies grayscale frames to the monitor.
//
// DirectorySource reads still images from a directory, which stands in for
// the sensor on development hosts and in tests. Retrying bounds the number
// of capture attempts for a single frame.
package camera
