package sourcing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadloop/leadloop-go/internal/models"
	"github.com/leadloop/leadloop-go/internal/search"
)

const enrichBatchSize = 10

// fetchAndInsert pages through the accepted query, enriches hits in batches,
// and inserts e-mail-resolved leads until the per-run goal is met. Returns
// found, deduped, inserted, and outreach-queued counts. Every failure past
// the first page degrades to partial results rather than aborting.
func (l *Loop) fetchAndInsert(ctx context.Context, in RunPersonaInput, campaignID, runID string, q models.QueryParams) (found, deduped, inserted, queued int) {
	fetchCap := 3 * in.LeadsPerRun
	if fetchCap > fetchHardCap {
		fetchCap = fetchHardCap
	}

	existing, err := l.store.QueryCampaignEmails(ctx, campaignID)
	if err != nil {
		l.logger.Warn("could not load campaign emails for dedup", "error", err)
		existing = map[string]bool{}
	}

	var hits []search.Hit
	seen := map[string]bool{}
	endPage := clamp(q.StartPage+q.PageCount-1, minStartPage, maxStartPage)
	for page := q.StartPage; page <= endPage && len(hits) < fetchCap; page++ {
		if page > q.StartPage {
			l.sleep(ctx, l.pageDelay)
		}
		pageHits, err := l.search.Search(ctx, l.apiKey, search.Params{
			Titles:    q.Titles,
			Locations: q.Locations,
			Keywords:  q.Keywords,
			Page:      page,
		})
		if err != nil {
			l.logger.Warn("fetch page failed, keeping partial results",
				"page", page, "error", err)
			break
		}
		if len(pageHits) == 0 {
			break
		}
		for _, h := range pageHits {
			if h.ID != "" && seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			hits = append(hits, h)
			if len(hits) == fetchCap {
				break
			}
		}
	}
	found = len(hits)

	for start := 0; start < len(hits) && inserted < in.LeadsPerRun; start += enrichBatchSize {
		if start > 0 {
			l.sleep(ctx, l.batchDelay)
		}
		end := start + enrichBatchSize
		if end > len(hits) {
			end = len(hits)
		}
		batch := hits[start:end]

		people := l.enrichHits(ctx, batch)

		for _, h := range batch {
			if inserted >= in.LeadsPerRun {
				break
			}

			lead := leadFromHit(h, people)
			if lead.Email == "" {
				continue
			}

			key := strings.ToLower(lead.Email)
			if existing[key] {
				deduped++
				continue
			}

			lead.UserID = in.UserID
			lead.CampaignID = campaignID
			rid := runID
			lead.RunLogID = &rid

			leadID := uuid.NewString()[:8]
			ok, err := l.store.QueryInsertLead(ctx, leadID, lead)
			if err != nil {
				l.logger.Warn("lead insert failed", "email", key, "error", err)
				continue
			}
			if !ok {
				deduped++
				continue
			}
			existing[key] = true
			inserted++

			if in.AutoOutreach {
				if l.queueOutreach(ctx, in, campaignID, leadID) {
					queued++
				}
			}
		}
	}

	return found, deduped, inserted, queued
}

// enrichHits resolves a batch's contact details, returning records keyed by
// provider id. An enrichment failure yields an empty map; hits that already
// carry an e-mail from search still insert.
func (l *Loop) enrichHits(ctx context.Context, batch []search.Hit) map[string]search.Person {
	ids := make([]string, 0, len(batch))
	for _, h := range batch {
		if h.Email == "" && h.ID != "" {
			ids = append(ids, h.ID)
		}
	}
	if len(ids) == 0 {
		return map[string]search.Person{}
	}

	people, err := l.search.EnrichBatch(ctx, l.apiKey, ids)
	if err != nil {
		l.logger.Warn("enrichment batch failed", "size", len(ids), "error", err)
		return map[string]search.Person{}
	}
	return people
}

func leadFromHit(h search.Hit, people map[string]search.Person) *models.Lead {
	lead := &models.Lead{
		ProviderID:  h.ID,
		FirstName:   h.FirstName,
		LastName:    h.LastName,
		Title:       h.Title,
		Company:     h.Company,
		Email:       h.Email,
		LinkedinURL: h.LinkedinURL,
		Location:    h.Location,
	}
	if p, ok := people[h.ID]; ok {
		if lead.Email == "" {
			lead.Email = p.Email
		}
		if lead.FirstName == "" {
			lead.FirstName = p.FirstName
		}
		if lead.LastName == "" {
			lead.LastName = p.LastName
		}
		if lead.Title == "" {
			lead.Title = p.Title
		}
		if lead.Company == "" {
			lead.Company = p.Company
		}
		if lead.LinkedinURL == "" {
			lead.LinkedinURL = p.LinkedinURL
		}
	}
	return lead
}

// queueOutreach enqueues the first sequence step for a freshly inserted
// lead, honoring the send delay and the user's daily cap. Best-effort: a
// failure here never fails the run.
func (l *Loop) queueOutreach(ctx context.Context, in RunPersonaInput, campaignID, leadID string) bool {
	if in.DailySendCap > 0 {
		sent, err := l.store.QueryCountOutreachSince(ctx, in.UserID, l.now().Add(-24*time.Hour))
		if err != nil {
			l.logger.Warn("daily cap check failed, skipping outreach", "error", err)
			return false
		}
		if sent >= in.DailySendCap {
			l.logger.Info("daily send cap reached, skipping outreach",
				"cap", in.DailySendCap)
			return false
		}
	}

	delay := time.Duration(in.SendDelayMinutes) * time.Minute
	job := &models.OutreachJob{
		UserID:     in.UserID,
		CampaignID: campaignID,
		LeadID:     leadID,
		SequenceID: in.SequenceID,
		Step:       1,
		SendAt:     l.now().UTC().Add(delay),
		Status:     models.OutreachPending,
	}
	if err := l.store.QueryEnqueueOutreach(ctx, uuid.NewString()[:8], job); err != nil {
		l.logger.Warn("failed to enqueue outreach", "error", err)
		return false
	}
	return true
}

// sleep waits for d or the context, whichever ends first.
func (l *Loop) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
