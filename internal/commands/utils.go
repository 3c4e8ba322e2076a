package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"github.com/susu3304/guildbank/internal/settlement"
)

// Component custom IDs are "<action>:<id>".
const (
	actionLootSplitSelect  = "lootsplit-select"
	actionLootSplitConfirm = "lootsplit-confirm"
	actionLootSplitApprove = "lootsplit-approve"
	actionLootSplitReject  = "lootsplit-reject"
	actionRegearFull       = "regear-approve-100"
	actionRegearReduced    = "regear-approve-70"
	actionRegearReject     = "regear-reject"
	actionPurgeAllApprove  = "purge-all-approve"
	actionPurgeAllDeny     = "purge-all-deny"
	actionPurgeOneApprove  = "purge-balance-approve"
	actionPurgeOneDeny     = "purge-balance-deny"
)

func customID(action, id string) string {
	if id == "" {
		return action
	}
	return action + ":" + id
}

func parseCustomID(v string) (action, id string) {
	action, id, _ = strings.Cut(v, ":")
	return action, id
}

// errorMessage turns an engine error into the text shown to the user.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, settlement.ErrUnauthorized):
		return "❌ Only officers can do that!"
	case errors.Is(err, settlement.ErrConfigurationMissing):
		return "❌ Lootsplit modifier or auth role not set"
	case errors.Is(err, settlement.ErrSessionNotFound):
		return "❌ Split no longer exists"
	case errors.Is(err, settlement.ErrRegearNotFound):
		return "❌ Regear request not found"
	case errors.Is(err, settlement.ErrAccountNotFound):
		return "❌ No payout account found"
	case errors.Is(err, settlement.ErrAlreadySettled):
		return "❌ Already settled"
	case errors.Is(err, settlement.ErrNotSettled):
		return "❌ This split has not been approved"
	case errors.Is(err, settlement.ErrInvalidState):
		return "❌ This request is already closed"
	case errors.Is(err, settlement.ErrSessionExpired):
		return "❌ Session expired. Please start over."
	case errors.Is(err, settlement.ErrNoParticipants):
		return "❌ No participants found"
	case errors.Is(err, settlement.ErrInvalidInput):
		return "❌ Invalid input"
	default:
		return "❌ Something went wrong, please try again later"
	}
}

// formatSilver renders an amount with thousands separators and at most two decimals.
func formatSilver(d decimal.Decimal) string {
	s := d.Round(2).String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for idx, r := range intPart {
		if idx > 0 && (len(intPart)-idx)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}

func formatPercent(modifier decimal.Decimal) string {
	return modifier.Mul(decimal.NewFromInt(100)).Round(2).String() + "%"
}

func mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

func mentions(userIDs []string) string {
	parts := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		parts = append(parts, mention(id))
	}
	return strings.Join(parts, ", ")
}

// interactionUserID returns the invoking user for both guild and DM interactions.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// respondUpdate edits the message carrying the component and disables its buttons.
func respondUpdate(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	var components []discordgo.MessageComponent
	if i.Message != nil {
		components = disableComponents(i.Message.Components)
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: components,
		},
	})
}

func disableComponents(rows []discordgo.MessageComponent) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		var children []discordgo.MessageComponent
		switch r := row.(type) {
		case *discordgo.ActionsRow:
			children = r.Components
		case discordgo.ActionsRow:
			children = r.Components
		default:
			continue
		}
		disabled := make([]discordgo.MessageComponent, 0, len(children))
		for _, c := range children {
			switch v := c.(type) {
			case *discordgo.Button:
				b := *v
				b.Disabled = true
				disabled = append(disabled, b)
			case discordgo.Button:
				v.Disabled = true
				disabled = append(disabled, v)
			case *discordgo.SelectMenu:
				m := *v
				m.Disabled = true
				disabled = append(disabled, m)
			case discordgo.SelectMenu:
				v.Disabled = true
				disabled = append(disabled, v)
			}
		}
		out = append(out, discordgo.ActionsRow{Components: disabled})
	}
	return out
}

func getOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range opts {
		if o.Name == name {
			return o
		}
	}
	return nil
}

func getStringOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o := getOption(opts, name); o != nil {
		return o.StringValue()
	}
	return ""
}

// getSilverOption reads a number option as silver. ok is false when the option is absent.
func getSilverOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (decimal.Decimal, bool) {
	o := getOption(opts, name)
	if o == nil {
		return decimal.Zero, false
	}
	switch v := o.Value.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	}
	return decimal.Zero, false
}

// getUserOption returns the raw user ID of a user option.
func getUserOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o := getOption(opts, name)
	if o == nil {
		return ""
	}
	if id, ok := o.Value.(string); ok {
		return id
	}
	if u := o.UserValue(nil); u != nil {
		return u.ID
	}
	return ""
}

func getRoleOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o := getOption(opts, name)
	if o == nil {
		return ""
	}
	if id, ok := o.Value.(string); ok {
		return id
	}
	return ""
}

// getAttachmentURL resolves an attachment option to its CDN URL.
func getAttachmentURL(data discordgo.ApplicationCommandInteractionData, name string) string {
	o := getOption(data.Options, name)
	if o == nil || data.Resolved == nil {
		return ""
	}
	id, _ := o.Value.(string)
	if a, ok := data.Resolved.Attachments[id]; ok && a != nil {
		return a.URL
	}
	return ""
}
