package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/settlement"
)

// maxListedAccounts caps how many purge candidates are spelled out in a message.
const maxListedAccounts = 20

func (h *Handler) handlePurgeAccounts(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if userID := getUserOption(data.Options, "user"); userID != "" {
		h.proposePurgeOne(ctx, s, i, userID)
		return
	}

	members, err := h.members.GuildMemberIDs(ctx, i.GuildID)
	if err != nil {
		h.fail(s, i, "list guild members", err)
		return
	}
	preview, err := h.engine.PreviewPurge(ctx, i.GuildID, members, interactionUserID(i))
	if err != nil {
		h.fail(s, i, "preview purge", err)
		return
	}
	if preview.Deleted == 0 {
		respondEphemeral(s, i, "No accounts to purge.")
		return
	}

	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: formatPurgePreview(preview),
			Components: []discordgo.MessageComponent{
				confirmRow(customID(actionPurgeAllApprove, ""), customID(actionPurgeAllDeny, "")),
			},
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
}

func formatPurgePreview(p settlement.PurgeSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ **Purge %d accounts** of users no longer in the server\n", p.Deleted)
	fmt.Fprintf(&b, "Total balance discarded: %s silver\n", formatSilver(p.Total))
	for idx, a := range p.Accounts {
		if idx == maxListedAccounts {
			fmt.Fprintf(&b, "…and %d more\n", len(p.Accounts)-maxListedAccounts)
			break
		}
		fmt.Fprintf(&b, "• %s: %s silver\n", mention(a.UserID), formatSilver(a.Balance))
	}
	return b.String()
}

func confirmRow(approveID, denyID string) discordgo.ActionsRow {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Purge",
				Style:    discordgo.SuccessButton,
				CustomID: approveID,
				Emoji:    discordgo.ComponentEmoji{Name: "✅"},
			},
			discordgo.Button{
				Label:    "Cancel",
				Style:    discordgo.SecondaryButton,
				CustomID: denyID,
			},
		},
	}
}

func (h *Handler) handlePurgeAllApprove(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	// Membership may have changed since the preview; purge against the current list.
	members, err := h.members.GuildMemberIDs(ctx, i.GuildID)
	if err != nil {
		h.fail(s, i, "list guild members", err)
		return
	}
	approver := interactionUserID(i)
	sum, err := h.engine.PurgeAccounts(ctx, i.GuildID, members, approver)
	if err != nil {
		h.fail(s, i, "purge accounts", err)
		return
	}
	respondUpdate(s, i, fmt.Sprintf("%s\n✅ Purged %d accounts (%s silver) by %s",
		i.Message.Content, sum.Deleted, formatSilver(sum.Total), mention(approver)))
}

func (h *Handler) handlePurgeDeny(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	actor := interactionUserID(i)
	if err := h.engine.CancelPurge(ctx, i.GuildID, actor); err != nil {
		h.fail(s, i, "cancel purge", err)
		return
	}
	respondUpdate(s, i, i.Message.Content+"\n❎ Purge canceled by "+mention(actor))
}

func (h *Handler) proposePurgeOne(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	a, err := h.engine.Balance(ctx, ledger.Key{GuildID: i.GuildID, UserID: userID})
	if err != nil {
		h.fail(s, i, "load account", err)
		return
	}
	content := strings.Join([]string{
		fmt.Sprintf("⚠️ Purge payout account of %s", mention(userID)),
		fmt.Sprintf("User ID: %s", userID),
		fmt.Sprintf("Balance: %s silver", formatSilver(a.Balance)),
	}, "\n")
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Components: []discordgo.MessageComponent{
				confirmRow(customID(actionPurgeOneApprove, userID), customID(actionPurgeOneDeny, userID)),
			},
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
}

func (h *Handler) handlePurgeOneApprove(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	approver := interactionUserID(i)
	a, err := h.engine.PurgeAccount(ctx, ledger.Key{GuildID: i.GuildID, UserID: userID}, approver)
	if err != nil {
		h.fail(s, i, "purge account", err)
		return
	}
	respondUpdate(s, i, fmt.Sprintf("%s\n✅ Purged by %s (%s silver discarded)",
		i.Message.Content, mention(approver), formatSilver(a.Balance)))
}
