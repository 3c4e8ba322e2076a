package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/session"
	"github.com/susu3304/guildbank/internal/settlement"
	"github.com/susu3304/guildbank/internal/silver"
)

const maxParticipants = 25

func (h *Handler) handleLootSplit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	gross, ok := getSilverOption(data.Options, "silver")
	donated, ok2 := getSilverOption(data.Options, "silverbags")
	if !ok || !ok2 {
		respondEphemeral(s, i, "❌ silver and silverbags are required")
		return
	}

	id, err := h.engine.CreateSession(ctx, settlement.NewSession{
		GuildID:       i.GuildID,
		CreatorID:     interactionUserID(i),
		Silver:        gross,
		Donated:       donated,
		ScreenshotURL: getAttachmentURL(data, "screenshot"),
	})
	if err != nil {
		h.fail(s, i, "create loot split", err)
		return
	}

	minValues := 1
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "**Loot Split Setup**\nSelect participants, then confirm:",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							MenuType:    discordgo.UserSelectMenu,
							CustomID:    customID(actionLootSplitSelect, id),
							Placeholder: "Select participants",
							MinValues:   &minValues,
							MaxValues:   maxParticipants,
						},
					},
				},
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Confirm",
							Style:    discordgo.SuccessButton,
							CustomID: customID(actionLootSplitConfirm, id),
							Emoji:    discordgo.ComponentEmoji{Name: "✅"},
						},
					},
				},
			},
		},
	})
	if err != nil {
		h.log.Warn("failed to send loot split setup", zap.String("session_id", id), zap.Error(err))
	}
}

// requireCreator loads the session and rejects anyone but its creator.
func (h *Handler) requireCreator(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string) (*session.LootSplit, bool) {
	ls, err := h.engine.Session(ctx, id)
	if err != nil {
		h.fail(s, i, "load loot split", err)
		return nil, false
	}
	if ls.CreatorID != interactionUserID(i) {
		respondEphemeral(s, i, "❌ Only the creator of this split can change it")
		return nil, false
	}
	return ls, true
}

func (h *Handler) handleLootSplitSelect(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string, values []string) {
	if _, ok := h.requireCreator(ctx, s, i, id); !ok {
		return
	}
	if err := h.engine.AttachParticipants(ctx, id, values); err != nil {
		h.fail(s, i, "attach participants", err)
		return
	}
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func (h *Handler) handleLootSplitConfirm(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string) {
	ls, ok := h.requireCreator(ctx, s, i, id)
	if !ok {
		return
	}
	if len(ls.Participants) == 0 {
		respondEphemeral(s, i, errorMessage(settlement.ErrNoParticipants))
		return
	}

	if err := respondUpdate(s, i, "Loot split submitted for approval."); err != nil {
		h.log.Warn("failed to close loot split setup", zap.String("session_id", id), zap.Error(err))
	}

	_, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Content: h.lootSplitSummary(ctx, ls),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Approve",
						Style:    discordgo.SuccessButton,
						CustomID: customID(actionLootSplitApprove, id),
						Emoji:    discordgo.ComponentEmoji{Name: "✅"},
					},
					discordgo.Button{
						Label:    "Reject",
						Style:    discordgo.DangerButton,
						CustomID: customID(actionLootSplitReject, id),
						Emoji:    discordgo.ComponentEmoji{Name: "✖️"},
					},
				},
			},
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		h.log.Error("failed to post loot split for approval", zap.String("session_id", id), zap.Error(err))
	}
}

// lootSplitSummary describes a pending split, including the share it would pay at the
// current modifier when one is configured.
func (h *Handler) lootSplitSummary(ctx context.Context, ls *session.LootSplit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Loot Split** `%s`\n", ls.ID)
	fmt.Fprintf(&b, "Created by %s\n", mention(ls.CreatorID))
	fmt.Fprintf(&b, "Silver: %s\n", formatSilver(ls.Silver))
	fmt.Fprintf(&b, "Silver bags: %s\n", formatSilver(ls.Donated))
	fmt.Fprintf(&b, "Participants (%d): %s\n", len(ls.Participants), mentions(ls.Participants))

	if cfg, err := h.engine.Configuration(ctx, ls.GuildID); err == nil && cfg.LootSplitPercentModifier != nil {
		modifier := *cfg.LootSplitPercentModifier
		if share, err := silver.PerParticipantShare(ls.Silver, ls.Donated, modifier, len(ls.Participants)); err == nil {
			fmt.Fprintf(&b, "Guild cut at %s: %s, %s silver each\n",
				formatPercent(modifier), formatSilver(silver.GuildCut(ls.Silver, modifier)), formatSilver(share))
		}
	}
	if ls.ScreenshotURL != "" {
		b.WriteString(ls.ScreenshotURL)
	}
	return b.String()
}

func (h *Handler) handleLootSplitApprove(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string) {
	approver := interactionUserID(i)
	res, err := h.engine.ApproveSession(ctx, id, approver)
	if err != nil {
		h.fail(s, i, "approve loot split", err)
		return
	}
	content := fmt.Sprintf("%s\n✅ Approved by %s: %s silver credited to each of %d participants",
		i.Message.Content, mention(approver), formatSilver(res.Share), len(res.Participants))
	if err := respondUpdate(s, i, content); err != nil {
		h.log.Warn("failed to update approved loot split", zap.String("session_id", id), zap.Error(err))
	}
}

func (h *Handler) handleLootSplitReject(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string) {
	approver := interactionUserID(i)
	if err := h.engine.RejectSession(ctx, id, approver); err != nil {
		h.fail(s, i, "reject loot split", err)
		return
	}
	respondUpdate(s, i, fmt.Sprintf("%s\n✖️ Rejected by %s", i.Message.Content, mention(approver)))
}

func (h *Handler) handleUndoLootSplit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	id := strings.TrimSpace(getStringOption(data.Options, "lootsplitid"))
	if id == "" {
		respondEphemeral(s, i, "❌ lootsplitid is required")
		return
	}
	requester := interactionUserID(i)
	if err := h.engine.UndoSession(ctx, id, requester); err != nil {
		h.fail(s, i, "undo loot split", err)
		return
	}
	respondText(s, i, fmt.Sprintf("↩️ Loot split `%s` was undone by %s. Participant balances were restored.", id, mention(requester)))
}
