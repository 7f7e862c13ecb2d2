package models

import "time"

type InfoRequestStatus string

const (
	InfoRequestPending    InfoRequestStatus = "PENDING"
	InfoRequestAnswered   InfoRequestStatus = "ANSWERED"
	InfoRequestSuperseded InfoRequestStatus = "SUPERSEDED"
)

// InfoRequest is an admin ask for more evidence from the claimant.
type InfoRequest struct {
	ID            string            `json:"id"`
	Message       string            `json:"message"`
	RequiresFile  bool              `json:"requiresFile"`
	RequiresYesNo bool              `json:"requiresYesNo"`
	RequestedAt   time.Time         `json:"requestedAt"`
	RequestedBy   string            `json:"requestedBy"`
	Status        InfoRequestStatus `json:"status"`
}

// InfoResponse is the claimant's answer, written by the end-user app.
type InfoResponse struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"requestId"`
	Answer      string    `json:"answer,omitempty"`
	FileURL     string    `json:"fileUrl,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	SubmittedBy string    `json:"submittedBy"`
}

// HasFile reports whether the response carries an uploaded file.
func (r InfoResponse) HasFile() bool {
	return r.FileURL != ""
}

// InfoExchange pairs a request with its response, if one was submitted.
type InfoExchange struct {
	Request  InfoRequest   `json:"request"`
	Response *InfoResponse `json:"response,omitempty"`
}

// JoinInfoHistory pairs requests with responses by request id, keeping the
// request order. When several responses share a request id the first wins;
// responses pointing at unknown requests are left out of the join.
func JoinInfoHistory(requests []InfoRequest, responses []InfoResponse) []InfoExchange {
	byRequest := make(map[string]InfoResponse, len(responses))
	for _, response := range responses {
		if _, seen := byRequest[response.RequestID]; !seen {
			byRequest[response.RequestID] = response
		}
	}

	exchanges := make([]InfoExchange, 0, len(requests))
	for _, request := range requests {
		exchange := InfoExchange{Request: request}
		if response, ok := byRequest[request.ID]; ok {
			exchange.Response = &response
		}
		exchanges = append(exchanges, exchange)
	}
	return exchanges
}
