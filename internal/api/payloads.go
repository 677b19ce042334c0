package api

// LoginRequest is the body of POST /auth/login/.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MetricPayload changes one vendor entry; nil fields are left alone.
type MetricPayload struct {
	Vendor     string   `json:"vendor"`
	Content    *string  `json:"content,omitempty"`
	Fluency    *float64 `json:"fluency,omitempty"`
	Adequacy   *float64 `json:"adequacy,omitempty"`
	Compliance *float64 `json:"compliance,omitempty"`
}

type SubDocumentPayload struct {
	ID             string          `json:"id"`
	EnglishContent *string         `json:"englishContent,omitempty"`
	Status         string          `json:"status,omitempty"`
	Metrics        []MetricPayload `json:"metrics,omitempty"`
}

// UpdateRequest is the body of PUT /documents/{id}/.
type UpdateRequest struct {
	SubDocs []SubDocumentPayload `json:"subdocs"`
	Edited  bool                 `json:"edited,omitempty"`
	Status  string               `json:"status,omitempty"`
}

func LoginPayload(email, password string) LoginRequest {
	return LoginRequest{Email: email, Password: password}
}

// EditDocumentPayload applies metrics to every listed sub-document and marks
// the document edited.
func EditDocumentPayload(subIDs []string, metrics []MetricPayload) UpdateRequest {
	body := UpdateRequest{Edited: true, SubDocs: make([]SubDocumentPayload, 0, len(subIDs))}
	for _, id := range subIDs {
		body.SubDocs = append(body.SubDocs, SubDocumentPayload{
			ID:      id,
			Metrics: append([]MetricPayload(nil), metrics...),
		})
	}
	return body
}

// HumanContent is the metric entry for a reviewer's content edit.
func HumanContent(content string) MetricPayload {
	return MetricPayload{Vendor: VendorHuman, Content: &content}
}

// HumanScores is the metric entry for a reviewer's score edit.
func HumanScores(fluency, adequacy, compliance float64) MetricPayload {
	return MetricPayload{Vendor: VendorHuman, Fluency: &fluency, Adequacy: &adequacy, Compliance: &compliance}
}

// EnglishContentPayload edits the source text of unscored sub-documents.
func EnglishContentPayload(subIDs []string, content string) UpdateRequest {
	body := UpdateRequest{Edited: true, SubDocs: make([]SubDocumentPayload, 0, len(subIDs))}
	for _, id := range subIDs {
		c := content
		body.SubDocs = append(body.SubDocs, SubDocumentPayload{ID: id, EnglishContent: &c})
	}
	return body
}

// NextPagePayload marks one sub-document reviewed, as paging forward in the
// editor does.
func NextPagePayload(subID string) UpdateRequest {
	return UpdateRequest{SubDocs: []SubDocumentPayload{{ID: subID, Status: StatusAwaitingPublication}}}
}

// PublishPayload publishes the document through its last sub-document.
func PublishPayload(lastSubID string) UpdateRequest {
	return UpdateRequest{SubDocs: []SubDocumentPayload{{ID: lastSubID}}, Status: StatusPublished}
}
