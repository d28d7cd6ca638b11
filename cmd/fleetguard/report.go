package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-fleetguard/pkg/algorithms"
	"github.com/dd0wney/cluso-fleetguard/pkg/monitor"
	"github.com/dd0wney/cluso-fleetguard/pkg/resilience"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(22)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF8800")).
			Bold(true)

	cautionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func gradeStyle(g resilience.Grade) lipgloss.Style {
	switch g {
	case resilience.GradeA, resilience.GradeB:
		return successStyle
	case resilience.GradeC:
		return cautionStyle
	case resilience.GradeD:
		return warnStyle
	default:
		return errorStyle
	}
}

func severityStyle(s algorithms.Severity) lipgloss.Style {
	switch s {
	case algorithms.SeverityCritical:
		return errorStyle
	case algorithms.SeverityHigh:
		return warnStyle
	case algorithms.SeverityMedium:
		return cautionStyle
	default:
		return mutedStyle
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

// renderResult formats an analysis as a boxed summary followed by its
// SPOFs, violations and recommendations.
func renderResult(r *resilience.Result) string {
	var b strings.Builder

	title := "Fleet resilience"
	if r.TopologyID != "" {
		title += ": " + r.TopologyID
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	thresholds := successStyle.Render("met")
	if !r.MeetsThresholds {
		thresholds = errorStyle.Render("not met")
	}
	summary := []string{
		row("Grade", gradeStyle(r.Grade).Render(r.Grade.String())),
		row("Score", fmt.Sprintf("%.3f", r.Score)),
		row("Thresholds", thresholds),
		row("Agents / connections", fmt.Sprintf("%d / %d", r.NodeCount, r.EdgeCount)),
		row("Min cut", fmt.Sprintf("%.2f", r.MinCut)),
		row("Path redundancy", fmt.Sprintf("%.2f", r.AveragePathRedundancy)),
		row("Connected pairs", fmt.Sprintf("%.0f%%", r.ConnectedPairFraction*100)),
		row("Duration", r.Duration.String()),
	}
	b.WriteString(boxStyle.Render(strings.Join(summary, "\n")))
	b.WriteString("\n")

	if len(r.SPOFs) > 0 {
		b.WriteString(renderSPOFs(r.SPOFs))
	}

	if len(r.ThresholdViolations) > 0 {
		b.WriteString(headerStyle.Render("Threshold violations"))
		b.WriteString("\n")
		for _, v := range r.ThresholdViolations {
			b.WriteString("  " + errorStyle.Render("✗") + " " + v + "\n")
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString(headerStyle.Render("Recommendations"))
		b.WriteString("\n")
		for _, rec := range r.Recommendations {
			b.WriteString("  • " + rec + "\n")
		}
	}
	return b.String()
}

// renderSPOFs lists SPOFs one per line with their severity and impact.
func renderSPOFs(spofs []algorithms.SPOF) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Single points of failure (%d)", len(spofs))))
	b.WriteString("\n")
	if len(spofs) == 0 {
		b.WriteString("  " + successStyle.Render("none") + "\n")
		return b.String()
	}
	for _, s := range spofs {
		severity := severityStyle(s.Severity).Render(fmt.Sprintf("%-8s", s.Severity))
		fmt.Fprintf(&b, "  %s %-20s %5.1f%%  cuts off %s\n",
			severity, s.NodeID, s.ImpactPercentage, strings.Join(s.DisconnectedAgents, ", "))
	}
	return b.String()
}

// renderOptimizations lists suggestions in their ranked order.
func renderOptimizations(opts []resilience.Optimization) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Suggested optimizations (%d)", len(opts))))
	b.WriteString("\n")
	if len(opts) == 0 {
		b.WriteString("  " + mutedStyle.Render("nothing to suggest") + "\n")
		return b.String()
	}
	for i, o := range opts {
		delta := fmt.Sprintf("%+.3f", o.ExpectedImprovement)
		if o.ExpectedImprovement > 0 {
			delta = successStyle.Render(delta)
		} else {
			delta = mutedStyle.Render(delta)
		}
		fmt.Fprintf(&b, "  %d. %s %s\n", i+1, o.Description, delta)
		fmt.Fprintf(&b, "     %s\n", mutedStyle.Render(fmt.Sprintf(
			"%s · score %.3f · effort %s · priority %s · id %s",
			o.Type, o.ExpectedScore, o.Effort, o.Priority, o.ID)))
	}
	return b.String()
}

// renderEvent formats one monitor event on a single line.
func renderEvent(e monitor.Event) string {
	at := mutedStyle.Render(e.Timestamp.Format("15:04:05"))
	cycle := mutedStyle.Render(fmt.Sprintf("#%d", e.Cycle))

	var detail string
	style := cautionStyle
	switch e.Type {
	case monitor.EventSPOFCriticalDetected:
		style = errorStyle
		detail = "critical SPOF " + e.Node
	case monitor.EventSPOFResolved:
		style = successStyle
		detail = "resolved SPOF " + e.Node
	case monitor.EventResilienceDegraded:
		style = warnStyle
		detail = fmt.Sprintf("score %.3f below %.3f", e.Score, e.Threshold)
	case monitor.EventResilienceRecovered:
		style = successStyle
		detail = fmt.Sprintf("score %.3f", e.Score)
	case monitor.EventCriticalSpofsExceeded:
		style = errorStyle
		detail = fmt.Sprintf("%d critical SPOFs, max %d", e.Count, e.Max)
	case monitor.EventAnalysisTimeout:
		style = warnStyle
		detail = fmt.Sprintf("after %dms", e.ElapsedMs)
	case monitor.EventAnalysisError:
		style = errorStyle
		detail = e.Cause
	}
	return fmt.Sprintf("%s %s %s %s", at, cycle, style.Render(string(e.Type)), detail)
}
