package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vilaca/taskomat/internal/domain"
)

// SummaryMarker prefixes the counter summary note so the engine can
// find its own prior report among the issue's notes.
const SummaryMarker = "`taskomat:countersummary`"

// Counter commands recognised in note bodies. Case-sensitive, one per
// line, may be mixed with prose.
const (
	cmdCount = "!count"
	cmdUnit  = "!countunit"
	cmdGoal  = "!countgoal"
)

const progressBarWidth = 20

// observation is one !count entry tagged with its note's timestamp.
type observation struct {
	At     time.Time
	Amount float64
}

// counterState is the engine's view of an issue's note stream:
// everything needed to render the summary and publish it idempotently.
// It is recomputed from scratch every run and never persisted.
type counterState struct {
	Unit         string
	Goal         float64
	HasGoal      bool
	Observations []observation

	// Prior summary note published by the engine, if any. Duplicates
	// should not exist, but runs interrupted between create and delete
	// may leave one behind; they are cleaned up here.
	SummaryID    int
	SummaryBody  string
	DuplicateIDs []int
}

// Counter parses the note stream of a counter-labelled issue and
// returns the mutations needed so that exactly one up-to-date summary
// note exists afterwards. Identical content results in no writes.
func Counter(issue *domain.Issue, notes []domain.Note, ctx *Context) ChangeSet {
	var cs ChangeSet

	if !ctx.EnableCounters || !issue.HasLabel(ctx.CounterLabel) {
		return cs
	}

	state := parseCounterNotes(notes)
	body := renderCounterSummary(summarize(state))

	switch {
	case state.SummaryID == 0:
		cs.CreateNotes = append(cs.CreateNotes, body)
	case state.SummaryBody != body:
		cs.updateNote(state.SummaryID, body)
	}
	cs.DeleteNotes = append(cs.DeleteNotes, state.DuplicateIDs...)

	return cs
}

// parseCounterNotes runs a single chronological pass over the notes,
// extracting commands and locating the engine's own summary note.
func parseCounterNotes(notes []domain.Note) counterState {
	var state counterState

	for _, note := range notes {
		if note.System {
			continue
		}

		if strings.HasPrefix(note.Body, SummaryMarker) {
			if state.SummaryID == 0 {
				state.SummaryID = note.ID
				state.SummaryBody = note.Body
			} else {
				state.DuplicateIDs = append(state.DuplicateIDs, note.ID)
			}
			continue
		}

		for _, line := range strings.Split(note.Body, "\n") {
			parseCounterLine(strings.TrimRight(line, "\r"), note.CreatedAt, &state)
		}
	}

	return state
}

// parseCounterLine applies a single line to the counter state.
// Unrecognised lines and malformed numeric arguments are ignored;
// a bad line never aborts parsing.
func parseCounterLine(line string, at time.Time, state *counterState) {
	if !strings.HasPrefix(line, "!count") {
		return
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}

	switch fields[0] {
	case cmdUnit:
		state.Unit = fields[1]
	case cmdGoal:
		if amount, ok := parseAmount(fields[1]); ok {
			state.Goal = amount
			state.HasGoal = true
		}
	case cmdCount:
		if amount, ok := parseAmount(fields[1]); ok {
			state.Observations = append(state.Observations, observation{At: at, Amount: amount})
		}
	}
}

// parseAmount parses a numeric command argument. Non-numeric and
// non-finite values are rejected.
func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// monthBucket aggregates the observations of one calendar month.
type monthBucket struct {
	Year  int
	Month time.Month
	Count int
	Sum   float64
}

func (b monthBucket) label() string {
	return fmt.Sprintf("%04d-%02d", b.Year, int(b.Month))
}

// counterSummary holds the aggregated data the rendered report is
// built from.
type counterSummary struct {
	Unit      string
	Goal      float64
	HasGoal   bool
	Processed int
	Sum       float64
	Min       float64
	Max       float64
	Last      float64
	FirstAt   time.Time
	LastAt    time.Time
	Months    []monthBucket
}

// summarize groups observations by calendar month, preserving
// first-seen month order, and computes the overall totals.
func summarize(state counterState) counterSummary {
	s := counterSummary{
		Unit:    state.Unit,
		Goal:    state.Goal,
		HasGoal: state.HasGoal,
	}

	index := make(map[string]int)
	for _, obs := range state.Observations {
		year, month, _ := obs.At.Date()
		key := fmt.Sprintf("%04d-%02d", year, int(month))
		i, seen := index[key]
		if !seen {
			i = len(s.Months)
			index[key] = i
			s.Months = append(s.Months, monthBucket{Year: year, Month: month})
		}
		s.Months[i].Count++
		s.Months[i].Sum += obs.Amount

		if s.Processed == 0 {
			s.Min = obs.Amount
			s.Max = obs.Amount
			s.FirstAt = obs.At
		}
		if obs.Amount < s.Min {
			s.Min = obs.Amount
		}
		if obs.Amount > s.Max {
			s.Max = obs.Amount
		}
		s.Sum += obs.Amount
		s.Last = obs.Amount
		s.LastAt = obs.At
		s.Processed++
	}

	return s
}

// goalPercentage returns the saturating progress value: never
// negative, never above 100, even when the total exceeds the goal.
func (s counterSummary) goalPercentage() int {
	if !s.HasGoal || s.Goal == 0 {
		return 0
	}
	pct := int(math.Round(100 * s.Sum / s.Goal))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// renderCounterSummary produces the deterministic summary document.
// Identical aggregation input always yields byte-identical output;
// the idempotent publication step depends on that.
func renderCounterSummary(s counterSummary) string {
	var b strings.Builder

	b.WriteString(SummaryMarker + " :abacus: **Counter summary**\n")

	if s.Processed == 0 {
		b.WriteString("\nProcessed **0** entries.\n")
		writeGoalLine(&b, s)
		return b.String()
	}

	fmt.Fprintf(&b, "\nProcessed **%d** entries between %s and %s.\n",
		s.Processed, s.FirstAt.Format("2006-01-02"), s.LastAt.Format("2006-01-02"))

	b.WriteString("\n| Month | Count | Sum | Delta |\n")
	b.WriteString("| --- | ---: | ---: | ---: |\n")
	for i, m := range s.Months {
		delta := "-"
		if i > 0 {
			delta = signedAmount(m.Sum-s.Months[i-1].Sum, s.Unit)
		}
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", m.label(), m.Count, amount(m.Sum, s.Unit), delta)
	}

	fmt.Fprintf(&b, "\n**Total:** %s (min %s, max %s, %s last)\n",
		amount(s.Sum, s.Unit), amount(s.Min, s.Unit), amount(s.Max, s.Unit), signedAmount(s.Last, s.Unit))

	writeGoalLine(&b, s)

	return b.String()
}

// writeGoalLine renders the progress indicator. The bar saturates at
// 100% while the totals above stay uncapped.
func writeGoalLine(b *strings.Builder, s counterSummary) {
	if !s.HasGoal {
		return
	}

	pct := s.goalPercentage()
	filled := pct * progressBarWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled)
	fmt.Fprintf(b, "\n**Goal:** `[%s]` %d%% (%s of %s)\n",
		bar, pct, amount(s.Sum, s.Unit), amount(s.Goal, s.Unit))
}

// amount formats a numeric value with the active unit, if any.
func amount(v float64, unit string) string {
	text := strconv.FormatFloat(v, 'f', -1, 64)
	if unit == "" {
		return text
	}
	return text + " " + unit
}

// signedAmount is like amount but always carries an explicit sign,
// for the "+X last" and month-delta displays.
func signedAmount(v float64, unit string) string {
	if v >= 0 {
		return "+" + amount(v, unit)
	}
	return amount(v, unit)
}
