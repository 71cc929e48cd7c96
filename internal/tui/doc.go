// Package tui implements the interactive search-and-download screen.
//
// The screen is a bubbletea model with three regions: a query input line, a
// result list with a detail pane for the selected extension, and a download
// section with one progress row per active or finished download.
//
// All concurrency lives in the marketplace client and the download manager;
// this package only translates their callbacks into bubbletea messages via
// an internal event channel and renders the state.
//
// # Key bindings
//
//	enter   run the search (input focus) / start a download (list focus)
//	tab     switch focus between input and results
//	ctrl+p  toggle publisher-name matching
//	esc     stop an in-flight search, or return focus to the input
//	q       quit (list focus); ctrl+c always quits
package tui
