// Package preflight checks that the host can run the indexer before it
// starts: the storage directory is writable and has room, the process may
// open enough files to watch the roots, the roots exist and the embedder
// answers.
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{StorageDir: dir, Roots: roots})
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
