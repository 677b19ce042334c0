package api

import (
	"context"
	"fmt"
	"time"

	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/obs"
)

// Review edit values sent by the workflow.
const (
	ReviewContent    = "QA Testing"
	ReviewFluency    = 1.5
	ReviewAdequacy   = 2.5
	ReviewCompliance = 4.0
)

// ReviewState is threaded through the workflow steps.
type ReviewState struct {
	DocumentID string
	SubIDs     []string
	Document   *Document
}

// Step is one named call sequence of the review workflow.
type Step struct {
	Name string
	Run  func(ctx context.Context, c *Client, st *ReviewState) error
}

// ReviewWorkflow replays a reviewer's API session against one document.
type ReviewWorkflow struct {
	Email    string
	Password string
	// DocumentID wins over DocumentName; a name is resolved from the listing.
	DocumentID   string
	DocumentName string
	// ExpectedSubDocs is checked when positive.
	ExpectedSubDocs int
	// PageDelay pauses between next-page updates.
	PageDelay time.Duration
	// ReadOnly stops after the content check; nothing is edited.
	ReadOnly bool
}

// Steps lists the workflow in order.
func (w ReviewWorkflow) Steps() []Step {
	steps := []Step{
		{"login", w.login},
		{"listing", w.listing},
		{"document details", w.details},
		{"content check", fetchFirstFile},
	}
	if w.ReadOnly {
		return steps
	}
	return append(steps,
		Step{"edit content", editContent},
		Step{"edit scores", editScores},
		Step{"next pages", w.nextPages},
		Step{"publish", publish},
	)
}

// Run executes every step and stops at the first failure.
func (w ReviewWorkflow) Run(ctx context.Context, c *Client) (*ReviewState, error) {
	st := &ReviewState{}
	for _, s := range w.Steps() {
		stepCtx := obs.WithStep(ctx, s.Name)
		if err := s.Run(stepCtx, c, st); err != nil {
			return st, fmt.Errorf("%s: %w", s.Name, err)
		}
		obs.From(stepCtx).Info("api step passed")
	}
	return st, nil
}

func (w ReviewWorkflow) login(ctx context.Context, c *Client, _ *ReviewState) error {
	_, err := c.Login(ctx, w.Email, w.Password)
	return err
}

func (w ReviewWorkflow) listing(ctx context.Context, c *Client, st *ReviewState) error {
	if w.DocumentID != "" {
		st.DocumentID = w.DocumentID
		_, err := c.Listing(ctx, 1)
		return err
	}
	for page := 1; ; page++ {
		list, err := c.Listing(ctx, page)
		if err != nil {
			return err
		}
		if d, ok := list.Find(w.DocumentName); ok {
			st.DocumentID = d.ID
			return nil
		}
		if len(list.Results) == 0 || page*len(list.Results) >= list.Count {
			return errs.New(errs.NotFound, fmt.Sprintf("document %q not in listing", w.DocumentName))
		}
	}
}

func (w ReviewWorkflow) details(ctx context.Context, c *Client, st *ReviewState) error {
	d, err := c.DocumentDetails(ctx, st.DocumentID)
	if err != nil {
		return err
	}
	st.Document = d
	st.SubIDs = st.SubIDs[:0]
	for _, sd := range d.SubDocs {
		st.SubIDs = append(st.SubIDs, sd.ID)
	}
	if !w.ReadOnly && d.Status != StatusAwaitingReview {
		return errs.New(errs.FailedPrecondition, fmt.Sprintf("document status is %s, want %s", d.Status, StatusAwaitingReview))
	}
	if w.ExpectedSubDocs > 0 && len(st.SubIDs) != w.ExpectedSubDocs {
		return errs.New(errs.FailedPrecondition, fmt.Sprintf("document has %d sub-documents, want %d", len(st.SubIDs), w.ExpectedSubDocs))
	}
	return nil
}

// fetchFirstFile fetches the first translated file link without credentials.
// Unscored documents have no links and pass.
func fetchFirstFile(ctx context.Context, c *Client, st *ReviewState) error {
	if st.Document == nil {
		return errs.New(errs.FailedPrecondition, "no document loaded")
	}
	for _, sd := range st.Document.SubDocs {
		for _, m := range sd.Metrics {
			if m.TranslatedFileURL == "" {
				continue
			}
			got, err := c.FetchContent(ctx, m.TranslatedFileURL)
			if err != nil {
				return err
			}
			if !got.OK() {
				return errs.New(errs.Unavailable, fmt.Sprintf("translated file %s answered %d with %d bytes", m.TranslatedFileURL, got.StatusCode, got.Bytes))
			}
			return nil
		}
	}
	return nil
}

func scored(d *Document) bool {
	for _, sd := range d.SubDocs {
		if len(sd.Metrics) > 0 {
			return true
		}
	}
	return false
}

func editContent(ctx context.Context, c *Client, st *ReviewState) error {
	body := EnglishContentPayload(st.SubIDs, ReviewContent)
	if scored(st.Document) {
		body = EditDocumentPayload(st.SubIDs, []MetricPayload{HumanContent(ReviewContent)})
	}
	_, err := c.EditDocument(ctx, st.DocumentID, body)
	if err != nil {
		return err
	}
	d, err := c.DocumentDetails(ctx, st.DocumentID)
	if err != nil {
		return err
	}
	st.Document = d
	return nil
}

// editScores sets the human scores and checks the first metric of the first
// sub-document is the human entry carrying them.
func editScores(ctx context.Context, c *Client, st *ReviewState) error {
	if !scored(st.Document) {
		return nil
	}
	out, err := c.EditDocument(ctx, st.DocumentID,
		EditDocumentPayload(st.SubIDs, []MetricPayload{HumanScores(ReviewFluency, ReviewAdequacy, ReviewCompliance)}))
	if err != nil {
		return err
	}
	if len(out[0].SubDocs) == 0 || len(out[0].SubDocs[0].Metrics) == 0 {
		return errs.New(errs.Internal, "edited document has no metrics")
	}
	m := out[0].SubDocs[0].Metrics[0]
	if m.Vendor != VendorHuman || m.Fluency != ReviewFluency || m.Adequacy != ReviewAdequacy || m.Compliance != ReviewCompliance {
		return errs.New(errs.Internal, fmt.Sprintf("first metric is %s %v/%v/%v", m.Vendor, m.Fluency, m.Adequacy, m.Compliance))
	}
	st.Document = &out[0]
	return nil
}

// nextPages marks every sub-document but the last as reviewed.
func (w ReviewWorkflow) nextPages(ctx context.Context, c *Client, st *ReviewState) error {
	for i := 0; i < len(st.SubIDs)-1; i++ {
		out, err := c.EditDocument(ctx, st.DocumentID, NextPagePayload(st.SubIDs[i]))
		if err != nil {
			return fmt.Errorf("file %d: %w", i+1, err)
		}
		subs := out[0].SubDocs
		if i < len(subs) && subs[i].ID == st.SubIDs[i] && subs[i].Status != StatusAwaitingPublication {
			return errs.New(errs.Internal, fmt.Sprintf("file %d status is %s after review", i+1, subs[i].Status))
		}
		obs.From(ctx).Info("file reviewed", "file", i+1, "of", len(st.SubIDs))
		if w.PageDelay > 0 && i < len(st.SubIDs)-2 {
			select {
			case <-ctx.Done():
				return errs.Wrap(errs.Timeout, "page delay", ctx.Err())
			case <-time.After(w.PageDelay):
			}
		}
	}
	return nil
}

func publish(ctx context.Context, c *Client, st *ReviewState) error {
	if len(st.SubIDs) == 0 {
		return errs.New(errs.FailedPrecondition, "document has no sub-documents")
	}
	out, err := c.PublishDocument(ctx, st.DocumentID, PublishPayload(st.SubIDs[len(st.SubIDs)-1]))
	if err != nil {
		return err
	}
	if out[0].Status != StatusPublished {
		return errs.New(errs.Internal, fmt.Sprintf("document status is %s after publish", out[0].Status))
	}
	st.Document = &out[0]
	return nil
}
