package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/efisher/swapreview/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CommandRequest is the JSON body of the process-command endpoint.
type CommandRequest struct {
	Offeror        string `json:"offeror"`
	OfferorID      int64  `json:"offeror_id"`
	ItemNumber     int    `json:"item_number"`
	ItemScope      string `json:"item_scope"`
	TargetAuthor   string `json:"target_author"`
	TargetAuthorID int64  `json:"target_author_id"`
	Scope          string `json:"scope"`
	AuthorizeBase  string `json:"authorize_base"`
}

// CredentialRequest is the JSON body of the put-credential endpoint.
type CredentialRequest struct {
	User      string `json:"user"`
	Scope     string `json:"scope"`
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	ExpiresAt string `json:"expires_at"` // RFC 3339.
}

// AckResponse acknowledges a successful credential store.
type AckResponse struct {
	Stored bool `json:"stored"`
}

// ResultResponse is the serialized form of a command result: a type tag plus
// the variant's data fields, unused fields omitted.
type ResultResponse struct {
	Type              string `json:"type"`
	ItemNumber        int    `json:"item_number,omitempty"`
	ItemScope         string `json:"item_scope,omitempty"`
	PartnerItemNumber int    `json:"partner_item_number,omitempty"`
	PartnerItemScope  string `json:"partner_item_scope,omitempty"`
	User              string `json:"user,omitempty"`
	AuthorizeURL      string `json:"authorize_url,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

// PledgeResponse is the JSON representation of an outstanding pledge.
type PledgeResponse struct {
	Offeror      string `json:"offeror"`
	TargetAuthor string `json:"target_author"`
	ItemNumber   int    `json:"item_number"`
	ItemScope    string `json:"item_scope"`
	CreatedAt    string `json:"created_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toResultResponse converts an engine result to its JSON representation.
func toResultResponse(result model.Result) ResultResponse {
	resp := ResultResponse{Type: result.Type()}

	switch r := result.(type) {
	case model.PledgeCreated:
		resp.ItemNumber = r.ItemNumber
		resp.ItemScope = r.ItemScope
	case model.MutualApprovalCompleted:
		resp.ItemNumber = r.ItemNumber
		resp.ItemScope = r.ItemScope
		resp.PartnerItemNumber = r.PartnerItemNumber
		resp.PartnerItemScope = r.PartnerItemScope
	case model.AwaitingAuthorization:
		resp.User = r.User
		resp.AuthorizeURL = r.AuthorizeURL
	case model.ApprovalFailed:
		resp.Reason = r.Reason
	}

	return resp
}

// toPledgeResponse converts a domain Pledge to its JSON representation.
func toPledgeResponse(p model.Pledge) PledgeResponse {
	return PledgeResponse{
		Offeror:      p.Offeror,
		TargetAuthor: p.TargetAuthor,
		ItemNumber:   p.ItemNumber,
		ItemScope:    p.ItemScope,
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
