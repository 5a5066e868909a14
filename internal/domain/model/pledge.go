package model

import "time"

// Pledge is an outstanding one-sided offer: Offeror has promised to approve
// ItemNumber (authored by TargetAuthor) as soon as TargetAuthor reciprocates
// with an approval on one of Offeror's items. A pledge lives inside exactly
// one partition (the installation scope) and is consumed the moment a
// reverse-keyed counterpart is found.
type Pledge struct {
	ID             int64
	Scope          string // Partition key, e.g. the installation identifier.
	Offeror        string
	OfferorID      int64
	TargetAuthor   string
	TargetAuthorID int64
	ItemNumber     int
	ItemScope      string // Repository the item lives in, "owner/repo".
	CreatedAt      time.Time
}
