package ui

import (
	"errors"

	"github.com/Aman-CERP/mcpvector/internal/ingest"
	"github.com/Aman-CERP/mcpvector/internal/journal"
)

// IndexObserver adapts worker results into renderer events. Failed
// documents become errors and skipped ones warnings.
func IndexObserver(r Renderer) func(res ingest.Result, done, total int) {
	return func(res ingest.Result, done, total int) {
		switch res.Outcome {
		case journal.OutcomeFailed:
			r.AddError(ErrorEvent{File: res.Task.Path, Err: resultErr(res)})
		case journal.OutcomeSkipped:
			r.AddError(ErrorEvent{File: res.Task.Path, Err: resultErr(res), IsWarn: true})
		}
		r.UpdateProgress(ProgressEvent{
			Stage:       StageIndexing,
			Current:     done,
			Total:       total,
			CurrentFile: res.Task.Path,
		})
	}
}

func resultErr(res ingest.Result) error {
	switch {
	case res.Detail != "":
		return errors.New(res.Detail)
	case res.Err != nil:
		return res.Err
	default:
		return errors.New(string(res.Outcome))
	}
}
