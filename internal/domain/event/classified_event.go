package event

import "github.com/kodascan/whalewatch/internal/domain/model"

// ClassifiedEvent carries an enriched transfer plus its classification
// result from the classification pool to the perspective/dedup stage.
type ClassifiedEvent struct {
	Transfer       model.EnrichedTransfer
	Classification model.Classification
	// Skip is set when the classification phase determined the event is
	// a CEX-internal move (or otherwise not worth a stored record) and
	// must be dropped rather than perspectivized.
	Skip bool
}
