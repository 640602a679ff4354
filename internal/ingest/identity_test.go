package ingest_test

import (
	"context"
	"testing"

	"tendertrack/db"
	"tendertrack/internal/ingest"
	"tendertrack/internal/testutils"
	"tendertrack/models"

	"github.com/stretchr/testify/require"
)

func TestIdentityPolicyKey(t *testing.T) {
	p := ingest.IdentityPolicy{}
	require.Equal(t, "ref:GEM/2025/B/1234567", p.Key(" GEM/2025/B/1234567 ", "Laptops", "MoD"))
	require.Equal(t, "title:Laptops", p.Key("", "Laptops", "MoD"))
	require.NotEqual(t, p.Key("", "Laptops", "MoD"), p.Key("", "laptops", "MoD"))

	withOrg := ingest.IdentityPolicy{MatchOrganization: true}
	require.Equal(t, "title:Laptops|org:MoD", withOrg.Key("", "Laptops", "MoD"))
	require.Equal(t, "ref:R-1", withOrg.Key("R-1", "Laptops", "MoD"))
}

func TestDetectorIsDuplicate(t *testing.T) {
	ctx := context.Background()
	store := testutils.NewMemStore()
	store.SeedTender(models.Tender{IdentityKey: "title:Servers", Title: "Servers", Status: models.StatusActive})
	store.SeedTender(models.Tender{IdentityKey: "ref:NIT-7", ExternalRef: "NIT-7", Title: "Cables", Status: models.StatusActive})
	require.NoError(t, store.InsertResult(ctx, &models.TenderResult{IdentityKey: "title:Bridge", TenderTitle: "Bridge"}))
	require.NoError(t, store.InsertResult(ctx, &models.TenderResult{IdentityKey: "ref:R-1", TenderTitle: "Tunnel", ReferenceNo: "R-1"}))

	d := ingest.NewDetector(store, ingest.IdentityPolicy{})

	tests := []struct {
		name string
		cand ingest.Candidate
		want bool
	}{
		{"title fallback", ingest.Candidate{Kind: models.KindTenders, Title: "Servers", Organization: "Other"}, true},
		{"title is case sensitive", ingest.Candidate{Kind: models.KindTenders, Title: "servers"}, false},
		{"reference id", ingest.Candidate{Kind: models.KindTenders, ExternalID: "NIT-7", Title: "Different"}, true},
		{"reference id matches title stored without reference", ingest.Candidate{Kind: models.KindTenders, ExternalID: "NIT-8", Title: "Servers"}, true},
		{"same title with another reference", ingest.Candidate{Kind: models.KindTenders, ExternalID: "NIT-9", Title: "Cables"}, false},
		{"title matches record stored with reference", ingest.Candidate{Kind: models.KindTenders, Title: "Cables"}, true},
		{"result title", ingest.Candidate{Kind: models.KindResults, Title: "Bridge"}, true},
		{"result reference matches title stored without reference", ingest.Candidate{Kind: models.KindResults, ExternalID: "R-5", Title: "Bridge"}, true},
		{"result with another reference", ingest.Candidate{Kind: models.KindResults, ExternalID: "R-2", Title: "Tunnel"}, false},
		{"results are separate", ingest.Candidate{Kind: models.KindResults, Title: "Servers"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.IsDuplicate(ctx, tt.cand)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDetectorMatchOrganization(t *testing.T) {
	ctx := context.Background()
	store := testutils.NewMemStore()
	store.SeedTender(models.Tender{IdentityKey: "title:Servers|org:NIC", Title: "Servers", Organization: "NIC"})

	d := ingest.NewDetector(store, ingest.IdentityPolicy{MatchOrganization: true})

	dup, err := d.IsDuplicate(ctx, ingest.Candidate{Kind: models.KindTenders, ExternalID: "NIC-1", Title: "Servers", Organization: "NIC"})
	require.NoError(t, err)
	require.True(t, dup)

	dup, err = d.IsDuplicate(ctx, ingest.Candidate{Kind: models.KindTenders, ExternalID: "BSNL-1", Title: "Servers", Organization: "BSNL"})
	require.NoError(t, err)
	require.False(t, dup)
}

func TestDetectorPropagatesStoreErrors(t *testing.T) {
	store := testutils.NewMemStore()
	store.Err = db.ErrUnavailable

	_, err := ingest.NewDetector(store, ingest.IdentityPolicy{}).
		IsDuplicate(context.Background(), ingest.Candidate{Kind: models.KindTenders, Title: "x"})
	require.ErrorIs(t, err, db.ErrUnavailable)
}
