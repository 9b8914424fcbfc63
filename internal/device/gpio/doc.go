// Package gpio drives the surveillance and intruder indicator lines.
package gpio
