package models_test

import (
	"testing"
	"time"

	"tendertrack/models"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.TenderStatus
		ok       bool
	}{
		{models.StatusActive, models.StatusMissedOpportunity, true},
		{models.StatusMissedOpportunity, models.StatusActive, true},
		{models.StatusActive, models.StatusSubmitted, true},
		{models.StatusAssigned, models.StatusSubmitted, true},
		{models.StatusSubmitted, models.StatusWon, true},
		{models.StatusWon, models.StatusActive, false},
		{models.StatusLost, models.StatusWon, false},
		{models.StatusAssigned, models.StatusActive, false},
		{models.StatusNotRelevant, models.StatusActive, false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, models.CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestValidateTransitionUnknownStatus(t *testing.T) {
	require.Error(t, models.ValidateTransition(models.StatusActive, "archived"))
	require.NoError(t, models.ValidateTransition(models.StatusDraft, models.StatusActive))
}

func TestAnnotations(t *testing.T) {
	var a models.Annotations
	a.Add(models.AnnotationSheet, "GeM")
	a.Add(models.AnnotationLocation, "")
	a.Add(models.AnnotationExternalID, "GEM/2024/B/1")

	require.Len(t, a, 2)
	v, ok := a.Get(models.AnnotationExternalID)
	require.True(t, ok)
	require.Equal(t, "GEM/2024/B/1", v)

	raw, err := a.Value()
	require.NoError(t, err)

	var back models.Annotations
	require.NoError(t, back.Scan(raw))
	require.Equal(t, a, back)
}

func TestValidateTender(t *testing.T) {
	score := 120
	tender := models.Tender{
		IdentityKey:  "title:Supply of laptops",
		Title:        "Supply of laptops",
		Organization: "Unknown",
		Deadline:     time.Now(),
		Status:       models.StatusActive,
		Source:       models.SourceNonGem,
		AIScore:      &score,
	}
	require.Error(t, models.Validate(&tender))

	score = 60
	require.NoError(t, models.Validate(&tender))

	tender.Status = "archived"
	require.Error(t, models.Validate(&tender))
}
