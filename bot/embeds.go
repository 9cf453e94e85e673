package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"earnings/events"
	"earnings/models"
)

// Discord color constants
const (
	ColorPrimary = 0x5865F2 // Discord blurple
	ColorSuccess = 0x57F287 // Green
	ColorDanger  = 0xED4245 // Red
	ColorWarning = 0xFEE75C // Yellow
)

// buildEmbed renders a bus event, or nil for events that are not posted
func buildEmbed(event events.Event) *discordgo.MessageEmbed {
	switch e := event.(type) {
	case events.PlatformsFrozenEvent:
		return buildFrozenEmbed(e)
	case events.PlatformsUnfrozenEvent:
		return buildUnfrozenEmbed(e)
	case events.PeriodClosedEvent:
		return buildClosedEmbed(e)
	case events.RateActivatedEvent:
		return buildRateEmbed(e)
	default:
		return nil
	}
}

func buildFrozenEmbed(e events.PlatformsFrozenEvent) *discordgo.MessageEmbed {
	color := ColorPrimary
	if e.Failures > 0 {
		color = ColorWarning
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Platforms", Value: formatList(e.Platforms), Inline: false},
		{Name: "Models", Value: FormatCount(int64(e.Models)), Inline: true},
		{Name: "Locks", Value: FormatCount(e.Locks), Inline: true},
	}
	if e.Failures > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "⚠️ Failures",
			Value:  FormatCount(int64(e.Failures)),
			Inline: true,
		})
	}

	return &discordgo.MessageEmbed{
		Title:       "🧊 Platforms Frozen",
		Description: fmt.Sprintf("Rule **%s** ran for period **%s**", e.Rule, FormatPeriod(e.Period)),
		Color:       color,
		Fields:      fields,
	}
}

func buildUnfrozenEmbed(e events.PlatformsUnfrozenEvent) *discordgo.MessageEmbed {
	model := "all models"
	if e.ModelID != nil {
		model = e.ModelID.String()
	}

	return &discordgo.MessageEmbed{
		Title:       "🔓 Platforms Unfrozen",
		Description: fmt.Sprintf("Period **%s**", FormatPeriod(e.Period)),
		Color:       ColorWarning,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Model", Value: model, Inline: true},
			{Name: "Removed", Value: FormatCount(e.Removed), Inline: true},
			{Name: "Platforms", Value: formatList(e.Platforms), Inline: false},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "By " + e.ActorID.String()},
	}
}

func buildClosedEmbed(e events.PeriodClosedEvent) *discordgo.MessageEmbed {
	color := ColorSuccess
	title := "✅ Period Closed"
	if e.Status == models.ClosureStateFailed || e.Failures > 0 {
		color = ColorDanger
		title = "❌ Period Closed With Failures"
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("Period **%s** is now **%s**", FormatPeriod(e.Period), e.Status),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Models", Value: FormatCount(int64(e.Models)), Inline: true},
			{Name: "Archived", Value: FormatCount(e.Archived), Inline: true},
			{Name: "Reset", Value: FormatCount(e.Reset), Inline: true},
			{Name: "Failures", Value: FormatCount(int64(e.Failures)), Inline: true},
		},
	}
}

func buildRateEmbed(e events.RateActivatedEvent) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "💱 Rate Updated",
		Description: fmt.Sprintf("**%s** (%s) is now **%s**", e.Rate.Kind, e.Rate.Scope, e.Rate.Value.String()),
		Color:       ColorPrimary,
		Footer:      &discordgo.MessageEmbedFooter{Text: "By " + e.ActorID.String()},
	}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "all"
	}
	return strings.Join(items, ", ")
}
