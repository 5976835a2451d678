package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"permutex/cmd/permutex/ui"
	"permutex/internal/dedup"
	"permutex/internal/manifest"
	"permutex/internal/runner"
	"permutex/internal/source"
	"permutex/internal/types"
)

const (
	progressWidth = 20
	dividerWidth  = 48
)

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }

func fingerprintShort(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func renderPlan(s ui.Styles, p *runner.Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", s.Bold.Render("profile"), p.Profile)
	fmt.Fprintf(&sb, "%s %s\n\n", s.Bold.Render("fingerprint"), fingerprintShort(p.Fingerprint))

	t := ui.NewSimpleTable("Shard Plan", []string{"ID", "Engine", "Start", "End", "Indexes", "Output"}).AlignRight(0, 2, 3, 4)
	for _, sh := range p.Shards {
		t.AddRow(strconv.Itoa(sh.ID), string(sh.Engine), itoa(sh.Start), itoa(sh.End), itoa(sh.Len()), sh.Output)
	}
	t.Footer = []string{strconv.Itoa(len(p.Shards)), "", "", "", itoa(p.Total()), ""}
	sb.WriteString(t.View(s))
	return sb.String()
}

func renderEstimate(s ui.Styles, p *runner.Plan, ests []source.Estimate) string {
	t := ui.NewSimpleTable("Estimate", []string{"Engine", "Indexes", "Candidates", "Size", "Exact"}).AlignRight(1, 2, 3)
	var candidates, bytes uint64
	exact := true
	for _, e := range ests {
		mark := "yes"
		if !e.Exact {
			mark = "sampled"
			exact = false
		}
		t.AddRow(string(e.Engine), itoa(e.Indexes), itoa(e.Candidates), ui.Bytes(e.Bytes), mark)
		candidates += e.Candidates
		bytes += e.Bytes
	}
	total := "yes"
	if !exact {
		total = "~"
	}
	t.Footer = []string{"total", itoa(p.Total()), itoa(candidates), ui.Bytes(bytes), total}

	var sb strings.Builder
	sb.WriteString(t.View(s))
	fmt.Fprintf(&sb, "%s shards on %d workers (%s)\n", strconv.Itoa(len(p.Shards)), p.Profile.Workers, p.Profile.Kind)
	if p.DedupMode != dedup.ModeOff {
		sb.WriteString(s.Muted.Render("candidate counts are before length filtering and "+string(p.DedupMode)+" dedup") + "\n")
	}
	return sb.String()
}

func renderStatus(s ui.Styles, m *manifest.Manifest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s  %s %s  %s %s\n",
		s.Bold.Render("run"), m.RunID,
		s.Bold.Render("profile"), m.Profile,
		s.Bold.Render("updated"), m.UpdatedAt.Local().Format(time.DateTime))

	t := ui.NewSimpleTable("", []string{"ID", "Engine", "State", "Progress", "Written", "Size"}).AlignRight(0, 4, 5)
	for _, sh := range m.Shards {
		t.AddRow(strconv.Itoa(sh.ID), string(sh.Engine), s.State(sh.State), s.Progress(sh.Progress(), progressWidth),
			itoa(sh.Written), ui.Bytes(uint64(max(sh.Bytes, 0))))
	}
	indexes, done, written := m.Totals()
	var size int64
	for _, sh := range m.Shards {
		size += sh.Bytes
	}
	frac := 1.0
	if indexes > 0 {
		frac = float64(done) / float64(indexes)
	}
	t.Footer = []string{strconv.Itoa(len(m.Shards)), "", "", s.Progress(frac, progressWidth), itoa(written), ui.Bytes(uint64(max(size, 0)))}
	sb.WriteString(t.View(s))
	sb.WriteString(s.RenderDivider(dividerWidth) + "\n")

	counts := m.Counts()
	fmt.Fprintf(&sb, "%d complete, %d in progress, %d pending, %d failed\n",
		counts[types.ShardStateComplete], counts[types.ShardStateInProgress],
		counts[types.ShardStatePending], counts[types.ShardStateFailed])
	for _, sh := range m.Shards {
		if sh.State == types.ShardStateFailed && sh.Error != "" {
			fmt.Fprintf(&sb, "%s shard %d: %s\n", s.Error.Render("failed"), sh.ID, sh.Error)
		}
	}
	return sb.String()
}

func renderSummary(s ui.Styles, p *runner.Plan, sum *runner.Summary) string {
	var sb strings.Builder
	d := sum.Decision
	if d.Mismatch != nil {
		fmt.Fprintf(&sb, "%s configuration changed since the last run; stale manifest archived to %s\n",
			s.Warning.Render("warning"), d.Mismatch.ArchivedTo)
	}
	if len(d.Skipped) > 0 || len(d.Resumed) > 0 {
		fmt.Fprintf(&sb, "resumed run %s: %d shards already complete, %d continued from a checkpoint\n",
			sum.RunID, len(d.Skipped), len(d.Resumed))
	}

	var generated, filtered, deduped uint64
	failed := 0
	for _, r := range sum.Results {
		generated += r.Generated
		filtered += r.Filtered
		deduped += r.Deduped
		if r.State == types.ShardStateFailed {
			failed++
		}
	}
	fmt.Fprintf(&sb, "%d shards run in %s: %d generated, %d written, %d filtered by length, %d duplicates\n",
		len(sum.Results), sum.Elapsed.Round(time.Millisecond), generated, sum.Written(), filtered, deduped)

	switch {
	case failed > 0:
		fmt.Fprintf(&sb, "%s %d shard(s) failed; rerun to retry them\n", s.Error.Render("failed"), failed)
	case sum.BudgetExhausted:
		fmt.Fprintf(&sb, "%s run budget reached; rerun to continue\n", s.Warning.Render("paused"))
	case sum.Merge != nil:
		fmt.Fprintf(&sb, "%s %s: %d lines, %s\n", s.Success.Render("wrote"), sum.Merge.Output, sum.Merge.Lines, ui.Bytes(uint64(sum.Merge.Bytes)))
	default:
		fmt.Fprintf(&sb, "shards left in %s\n", p.Config.Output.WorkDir)
	}
	return sb.String()
}
