package entity

// Opportunity pairs a listing with its fresh enrichment when the edge score
// lands in the green bucket. Consumed by the alert notifier.
type Opportunity struct {
	Listing    *Listing
	Enrichment *Enrichment
}
