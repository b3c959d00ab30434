package insights

import (
	"errors"
	"fmt"
)

// ErrRouteNotFound reports a preview request naming a route the form does
// not contain.
var ErrRouteNotFound = errors.New("insights: route not found on form")

// DataIntegrityError reports a divergence between the members matched by
// attribute logic and the hosts actually assigned to the target event
// type, the symptom of stale host or member data. The affected queue is
// omitted from the report; sibling queues continue.
type DataIntegrityError struct {
	EventTypeID  int64
	MatchedCount int
	HostCount    int
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf(
		"insights: %d members matched attribute logic but only %d are hosts of event type %d",
		e.MatchedCount, e.HostCount, e.EventTypeID,
	)
}
