package model

// Command is a validated inbound approval-exchange request. The transport
// layer is responsible for authenticity; by the time a Command reaches the
// engine it is trusted but not yet validated against protocol rules.
type Command struct {
	Offeror        string
	OfferorID      int64
	ItemNumber     int
	ItemScope      string
	TargetAuthor   string // Empty when the author could not be determined.
	TargetAuthorID int64
	Scope          string // Partition key.
	AuthorizeBase  string // Base URL for constructing authorization links.
}
