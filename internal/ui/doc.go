// package ui implements the terminal UI for live batch downloads.
//
// The model subscribes to the download engine's progress channel and renders
// a progress bar, the current item, running tallies, and a severity-colored
// summary once the batch finishes. Quitting mid-run requests cooperative
// cancellation; the in-flight item still completes.
package ui
