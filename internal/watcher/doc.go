// Package watcher keeps track of the files under a set of watch roots.
//
// Raw notifications come from fsnotify, or from periodic polling where
// fsnotify fails (network mounts, container volumes). They are filtered by
// root containment, supported extension and ignore rules, then settled by
// a Debouncer so that an editor's save burst yields a single event.
//
// Usage:
//
//	filter, missing := watcher.NewFilter(roots, exts, watcher.WithIgnore(patterns))
//	w := watcher.New(filter, watcher.DefaultOptions(), logger)
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	for event := range w.Events() {
//	    switch event.Operation {
//	    case watcher.OpCreate, watcher.OpModify:
//	        // reindex event.Path
//	    case watcher.OpDelete:
//	        // drop event.Path
//	    }
//	}
//
// FullScan lists the accepted files under every root and is used to
// reconcile the index at startup.
package watcher
