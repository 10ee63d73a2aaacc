package services

import (
	"context"
	"fmt"
	"strings"

	"duel-engine/metrics"
	"duel-engine/models"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FormatName renders a tournament format for display ("swiss" → "Swiss").
// A Caser is stateful, so one is built per call.
func FormatName(format string) string {
	return cases.Title(language.English).String(format)
}

func formatMinutes(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}

func formatDelta(d int) string {
	if d >= 0 {
		return fmt.Sprintf("+%d", d)
	}
	return fmt.Sprintf("%d", d)
}

func problemLabel(contestID int, index, name string) string {
	if name == "" {
		return fmt.Sprintf("%d%s", contestID, index)
	}
	return fmt.Sprintf("%d%s %s", contestID, index, name)
}

// ChallengeView is the structured payload attached to challenge summaries.
type ChallengeView struct {
	Challenge *models.Challenge `json:"challenge"`
	Streaks   map[string]int    `json:"streaks,omitempty"`
}

func renderChallenge(ch *models.Challenge, streaks map[string]int, now int64) RenderedState {
	state := RenderedState{
		Title:   "Challenge: " + problemLabel(ch.ContestID, ch.ProblemIndex, ch.ProblemName),
		Status:  ch.Status,
		Final:   ch.Status != models.ChallengeStatusActive,
		Payload: ChallengeView{Challenge: ch, Streaks: streaks},
	}
	if ch.Status == models.ChallengeStatusActive {
		state.Status = fmt.Sprintf("active, %s left", formatMinutes(ch.EndsAt-now))
	}

	for _, p := range ch.Participants {
		var b strings.Builder
		b.WriteString(p.UserID)
		b.WriteString(": ")
		switch {
		case p.SolvedAt != nil:
			fmt.Fprintf(&b, "solved after %s", formatMinutes(*p.SolvedAt-ch.StartedAt))
		case ch.Status == models.ChallengeStatusActive:
			b.WriteString("working")
		default:
			b.WriteString("unsolved")
		}
		if p.RatingDelta != nil {
			fmt.Fprintf(&b, " (%s)", formatDelta(*p.RatingDelta))
		}
		if s := streaks[p.UserID]; s > 1 {
			fmt.Fprintf(&b, ", streak %d", s)
		}
		state.Lines = append(state.Lines, b.String())
	}
	return state
}

func renderTournament(t *models.Tournament, standings []Standing) RenderedState {
	state := RenderedState{
		Title:   fmt.Sprintf("%s tournament: %s", FormatName(t.Format), t.Name),
		Status:  t.Status,
		Final:   t.Status != models.TournamentStatusActive,
		Payload: standings,
	}
	if t.Format != models.FormatArena {
		state.Status = fmt.Sprintf("%s, round %d/%d", t.Status, t.CurrentRound, t.RoundCount)
	}
	for _, st := range standings {
		if t.Format == models.FormatArena {
			state.Lines = append(state.Lines, fmt.Sprintf("%d. %s: %d solved", st.Rank, st.UserID, st.Solved))
			continue
		}
		state.Lines = append(state.Lines, fmt.Sprintf("%d. %s: %.1f (%d-%d-%d, tb %.2f)",
			st.Rank, st.UserID, st.Score, st.Wins, st.Draws, st.Losses, st.Tiebreak))
	}
	return state
}

// notify posts a summary. Failures are logged and never returned.
func notify(ctx context.Context, sink MessageSink, log *zap.Logger, ref SummaryRef, state RenderedState) {
	if sink == nil {
		return
	}
	if err := sink.PostOrUpdateSummary(ctx, ref, state); err != nil {
		metrics.SinkFailed()
		log.Warn("summary update failed",
			zap.String("kind", ref.Kind),
			zap.String("id", ref.ID),
			zap.Error(err),
		)
	}
}
