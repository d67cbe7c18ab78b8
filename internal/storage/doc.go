// Package storage manages the files a run leaves behind under the base
// directory.
//
// Archives fetched by the download mode go to downloads/, and reports
// written by the file output mode go to results/ as <mode>_<timestamp>.csv.
// Both directories are created on first use.
package storage
