package workers

import (
	"context"
	"testing"

	"duel-engine/services"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNATSSink_Subject(t *testing.T) {
	s := NewNATSSink(nil, "duel.summary", nil)
	assert.Equal(t, "duel.summary.challenge.abc", s.Subject(services.SummaryRef{Kind: services.SummaryKindChallenge, ID: "abc"}))
	assert.Equal(t, "duel.summary.tournament.t1", s.Subject(services.SummaryRef{Kind: services.SummaryKindTournament, ID: "t1"}))
}

func TestLogSink_LogsSummary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := LogSink{Log: zap.New(core)}

	err := sink.PostOrUpdateSummary(context.Background(),
		services.SummaryRef{Kind: services.SummaryKindChallenge, ID: "c1"},
		services.RenderedState{Title: "Easy Sum", Status: "active", Lines: []string{"alice: solved"}})
	assert.NoError(t, err)

	entries := logs.FilterMessage("summary").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "c1", fields["id"])
		assert.Equal(t, "Easy Sum", fields["title"])
	}
}
