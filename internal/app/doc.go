// Package app is the composition root for skiff.
//
// Run and Play share one startup path:
//
//  1. Load ~/.config/skiff/config.toml and resolve the helper programs
//     (bukanir-http, torrent2http, mpv or mplayer). A missing program is fatal.
//  2. Configure logging: JSON lines to ~/.cache/skiff/skiff.log for the TUI,
//     console lines on stderr for play.
//  3. Create the scratch directory that holds partial downloads and
//     subtitles. It is removed on exit.
//  4. Build the gateway and stream daemon clients, the process supervisor, the
//     settings holder and the orchestrator.
//  5. Start the metadata gateway. If it never answers, skiff exits with
//     "skiff needs the metadata gateway and the stream daemon".
//
// Run then watches the config file for [settings] changes, polls gateway
// health in the background and hands control to the TUI. Play launches a
// single locator and waits for the attempt to end.
//
// Orchestrator.Close runs on every exit path, so no helper process outlives
// skiff.
package app
