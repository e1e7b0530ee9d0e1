package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civicly/civicly/internal/ledger"
	"github.com/civicly/civicly/internal/logging"
)

func TestServiceCreateDefaults(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), logging.Discard())
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{IssueID: "issue-1", Title: "  Resurface Elm Street  ", TargetPence: 10_000, Recipient: "Elm Street Residents"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != ledger.CampaignActive {
		t.Fatalf("expected active campaign, got %s", c.Status)
	}
	if c.RaisedPence != 0 || c.ContributorCount != 0 {
		t.Fatalf("expected zeroed counters, got %+v", c)
	}
	if c.PlatformFeePct != DefaultPlatformFeePct {
		t.Fatalf("expected default fee %d, got %d", DefaultPlatformFeePct, c.PlatformFeePct)
	}
	if c.Title != "Resurface Elm Street" {
		t.Fatalf("expected trimmed title, got %q", c.Title)
	}

	fetched, err := svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.ID != c.ID {
		t.Fatalf("expected campaign %s, got %s", c.ID, fetched.ID)
	}
}

func TestServiceCreateFeeOverride(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), logging.Discard())
	fee := 5
	c, err := svc.Create(context.Background(), CreateInput{IssueID: "issue-1", Title: "Bus shelter", TargetPence: 500, PlatformFeePct: &fee, OrgID: "org-9"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.PlatformFeePct != 5 {
		t.Fatalf("expected fee 5, got %d", c.PlatformFeePct)
	}
	if c.OrgID == nil || *c.OrgID != "org-9" {
		t.Fatalf("expected org id to be kept, got %v", c.OrgID)
	}
}

func TestServiceCreateValidation(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), logging.Discard())
	ctx := context.Background()
	badFee := 101

	cases := []struct {
		name  string
		input CreateInput
		want  error
	}{
		{"target below floor", CreateInput{IssueID: "i", Title: "t", TargetPence: 99}, ledger.ErrInvalidAmount},
		{"negative target", CreateInput{IssueID: "i", Title: "t", TargetPence: -500}, ledger.ErrInvalidAmount},
		{"missing title", CreateInput{IssueID: "i", Title: " ", TargetPence: 100}, ledger.ErrInvalidCampaign},
		{"missing issue", CreateInput{Title: "t", TargetPence: 100}, ledger.ErrInvalidCampaign},
		{"fee out of range", CreateInput{IssueID: "i", Title: "t", TargetPence: 100, PlatformFeePct: &badFee}, ledger.ErrInvalidCampaign},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEvaluateFundingThreshold(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		in         ledger.Campaign
		wantStatus string
		wantFunded bool
	}{
		{"below target", ledger.Campaign{Status: ledger.CampaignActive, TargetPence: 10_000, RaisedPence: 9_999}, ledger.CampaignActive, false},
		{"exactly target", ledger.Campaign{Status: ledger.CampaignActive, TargetPence: 10_000, RaisedPence: 10_000}, ledger.CampaignFunded, true},
		{"over target", ledger.Campaign{Status: ledger.CampaignActive, TargetPence: 10_000, RaisedPence: 12_000}, ledger.CampaignFunded, true},
		{"already funded", ledger.Campaign{Status: ledger.CampaignFunded, TargetPence: 10_000, RaisedPence: 12_000}, ledger.CampaignFunded, false},
		{"cancelled stays cancelled", ledger.Campaign{Status: ledger.CampaignCancelled, TargetPence: 100, RaisedPence: 500}, ledger.CampaignCancelled, false},
		{"disbursed stays disbursed", ledger.Campaign{Status: ledger.CampaignDisbursed, TargetPence: 100, RaisedPence: 50}, ledger.CampaignDisbursed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := EvaluateFundingThreshold(tc.in, now)
			if out.Status != tc.wantStatus {
				t.Fatalf("expected status %s, got %s", tc.wantStatus, out.Status)
			}
			if tc.wantFunded && (out.FundedAt == nil || !out.FundedAt.Equal(now)) {
				t.Fatalf("expected funded_at %v, got %v", now, out.FundedAt)
			}
			if !tc.wantFunded && out.FundedAt != tc.in.FundedAt {
				t.Fatalf("funded_at must not change, got %v", out.FundedAt)
			}
			if out.RaisedPence != tc.in.RaisedPence {
				t.Fatalf("raised_pence must not change")
			}
		})
	}
}

func TestServiceListByIssue(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), logging.Discard())
	ctx := context.Background()
	for _, issue := range []string{"issue-1", "issue-1", "issue-2"} {
		if _, err := svc.Create(ctx, CreateInput{IssueID: issue, Title: "Campaign", TargetPence: 1_000}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	found, err := svc.List(ctx, ledger.CampaignFilter{IssueID: "issue-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 campaigns for issue-1, got %d", len(found))
	}
}
