// Package ui is skiff's Bubble Tea front end.
//
// The model never calls the orchestrator from Update. Browse requests, play
// and back run as tea.Cmd functions, because they can block on the gateway or
// on process teardown. Orchestrator events land in a state.Store, which the
// model reads on every tick; nothing on the orchestrator side waits for the
// UI to render.
//
// Views:
//
//   - Browse: top list per category, or search results, in a bubbles list.
//     "/" opens a search prompt with autocomplete suggestions.
//   - Summary: details of the selected release; play it or its trailer.
//   - Playback: buffering progress from the readiness gate, then the playing
//     title. Esc abandons the attempt.
//   - Logs: the tail of skiff's own log file, parsed by logtail.
//
// Theme and last category persist through the prefs package.
package ui
