// Package frame holds the grayscale Frame captured by the camera and the
// brightness statistic derived from it.
//
// Mean reduces a frame to a single value in [0, 255]. Annotate produces a
// marked copy of a frame used for intruder snapshots.
package frame
