package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipdraft/internal/api"
)

var titleCaser = cases.Title(language.English)

func stateLabel(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return "Unknown"
	}
	return titleCaser.String(state)
}

// displayTime renders an API timestamp in local time, or the raw value when it
// does not parse.
func displayTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

func failureSummary(f *api.Failure) string {
	if f == nil {
		return ""
	}
	summary := fmt.Sprintf("%s %s", f.Step, strings.ReplaceAll(f.Kind, "_", " "))
	if msg := strings.TrimSpace(f.Message); msg != "" {
		summary += ": " + msg
	}
	return summary
}

func renderItemTable(items []api.Item) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			stateLabel(item.State),
			item.SourceURL,
			strconv.Itoa(len(item.DraftTweets)),
			displayTime(item.UpdatedAt),
			failureSummary(item.LastError),
		})
	}
	return renderTable(
		[]string{"ID", "State", "Source", "Drafts", "Updated", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func renderItemDetail(item api.Item, colorize bool) []string {
	lines := []string{
		renderStatusLine(fmt.Sprintf("Item %d", item.ID), stateKind(item.State), stateLabel(item.State), colorize),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Source:", item.SourceURL),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Created:", displayTime(item.CreatedAt)),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Updated:", displayTime(item.UpdatedAt)),
	}
	if f := item.LastError; f != nil {
		lines = append(lines, renderStatusLine("Last error", statusError, failureSummary(f), colorize))
		if hint := strings.TrimSpace(f.Hint); hint != "" {
			lines = append(lines, fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Hint:", hint))
		}
	}

	if text := strings.TrimSpace(item.Transcript); text != "" {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Transcript", colorize)...)
		lines = append(lines, text)
	}
	if notes := strings.TrimSpace(item.ResearchNotes); notes != "" {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Research Notes", colorize)...)
		lines = append(lines, notes)
	}
	if len(item.Citations) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Citations", colorize)...)
		rows := make([][]string, 0, len(item.Citations))
		for i, c := range item.Citations {
			rows = append(rows, []string{strconv.Itoa(i + 1), c.Source, c.Excerpt})
		}
		lines = append(lines, renderTable([]string{"#", "Source", "Excerpt"}, rows, []columnAlignment{alignRight}))
	}
	if len(item.DraftTweets) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Draft Tweets", colorize)...)
		for i, draft := range item.DraftTweets {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, draft))
		}
	}
	return lines
}

func renderHistoryTable(history []api.Transition) string {
	rows := make([][]string, 0, len(history))
	for _, evt := range history {
		from := "-"
		if evt.PreviousState != "" {
			from = stateLabel(evt.PreviousState)
		}
		rows = append(rows, []string{
			displayTime(evt.At),
			evt.Event,
			from,
			stateLabel(evt.NextState),
			evt.Note,
		})
	}
	return renderTable([]string{"Time", "Event", "From", "To", "Note"}, rows, nil)
}
