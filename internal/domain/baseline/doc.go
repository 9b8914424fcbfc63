// Package baseline implements the fixed-capacity rolling history of
// brightness measures and the baseline average computed over it.
package baseline
