package errcodes

import "git.appkode.ru/pub/go/failure"

const (
	InternalServerError failure.ErrorCode = "InternalServerError"
	TimeoutExceeded     failure.ErrorCode = "TimeoutExceeded"
	ValidationError     failure.ErrorCode = "ValidationError"
	NotFound            failure.ErrorCode = "NotFound"
	Forbidden           failure.ErrorCode = "Forbidden"
	InvalidPaging       failure.ErrorCode = "InvalidPaging"

	// Listings and enrichment
	ListingNotFound    failure.ErrorCode = "ListingNotFound"
	InvalidListingID   failure.ErrorCode = "InvalidListingID"
	InvalidListing     failure.ErrorCode = "InvalidListing"     // malformed attributes, e.g. negative price
	EnrichmentNotFound failure.ErrorCode = "EnrichmentNotFound" // listing exists but was never enriched
	TransientDataError failure.ErrorCode = "TransientDataError" // external lookup failed after retries

	// Market aggregates
	AggregateNotFound failure.ErrorCode = "AggregateNotFound"

	// Price model
	ModelNotFound            failure.ErrorCode = "ModelNotFound"
	InsufficientTrainingData failure.ErrorCode = "InsufficientTrainingData"

	// Jobs
	JobNotFound       failure.ErrorCode = "JobNotFound"
	InvalidJobKind    failure.ErrorCode = "InvalidJobKind"
	JobAlreadyRunning failure.ErrorCode = "JobAlreadyRunning"
)
