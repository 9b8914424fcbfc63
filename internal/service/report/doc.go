// Package report prints stored alarms: recent journal entries and single snapshot sidecars.
package report
