package transcript

// Merge combines segments from any number of collections into one collection
// sorted by start time. Sources are never mutated. Segments from different
// paths (streaming, batch) are re-sorted rather than interleaved as-is.
func Merge(collections ...Collection) Collection {
	var segments []Segment
	for _, c := range collections {
		segments = append(segments, c.segments...)
	}
	return NewCollection(segments...)
}

// Assemble picks the transcript for a finished session. The batch result,
// when present, supersedes streaming output entirely: batch segments are the
// provider's final pass over the same audio, so merging the two would
// duplicate text. With no batch result the streaming segments stand.
func Assemble(streaming, batch Collection) Collection {
	if !batch.IsEmpty() {
		return Merge(batch)
	}
	return Merge(streaming)
}
