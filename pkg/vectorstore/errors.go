package vectorstore

import "fmt"

// PartialUpsertError reports a mid-batch failure while upserting chunks.
// Succeeded lists the chunk indices that were embedded and written before
// the failure.
type PartialUpsertError struct {
	Namespace   string
	SourceId    string
	Succeeded   []int
	FailedIndex int
	Err         error
}

func (e *PartialUpsertError) Error() string {
	return fmt.Sprintf("upsert to %s/%s failed at chunk %d (%d of %d chunks written): %v",
		e.Namespace, e.SourceId, e.FailedIndex, len(e.Succeeded), e.FailedIndex+1, e.Err)
}

func (e *PartialUpsertError) Unwrap() error {
	return e.Err
}
