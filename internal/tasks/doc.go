// Package tasks runs the operations that need more than one backend call, with progress reporting.
//
// # Parallel Loads
//
// [Engine.LoadLibrary] fetches tracks and playlists, [Engine.LoadDirectory] fetches discoverable users
// and follows. Both issue their calls at once through an errgroup: the first failure cancels the sibling
// call and is the only error returned.
//
// # Bulk Upload
//
// [Engine.BulkUpload] sends many files to the media service with a bounded worker pool sharing one
// rate limiter. Per-file outcomes are collected in input order; one failure does not stop the batch.
// [CollectUploads] builds the jobs from a directory of audio files.
//
// # Progress Reporting
//
// All operations accept an optional channel of [ProgressUpdate]. Sends use select with default,
// so a slow or absent reader never blocks the work.
package tasks
