// Package parser implements the four scraping modes: whats-new,
// latest-versions, download and pep.
//
// Every mode follows the same contract. A nil table with a nil error means the
// index page could not be fetched and there is nothing to report. A non-nil
// error aborts the run (a required tag was missing, or a file could not be
// written). Otherwise the table holds the results. Detail pages that fail to
// load are skipped one by one without aborting.
package parser
