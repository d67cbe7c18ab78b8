// Package output renders a report.Table in the mode chosen on the command
// line.
//
// The default mode prints each row with its cells separated by spaces. The
// other modes are a bordered table (pretty), a CSV file under results/ (file),
// a Markdown table (markdown), a JSON array (json), and the pretty table piped
// through a pager (pager).
package output
