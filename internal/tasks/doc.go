// package tasks implements the batch download pipeline.
//
// The core abstraction is DownloadEngine, which takes a list of catalog
// tracks through metadata correction, library deduplication, credential
// management, sequential fetching with a bounded auth retry, ledger
// bookkeeping, and manifest emission. Operations emit progress updates via
// channels for non-blocking status reporting to CLI/UI layers.
//
// Batches run sequentially and cooperatively: cancellation (context or
// [DownloadEngine.Stop]) is observed between items, never mid-fetch, so
// every attempted item still reaches a terminal ledger state.
package tasks
