package commands

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/silver"
)

func (h *Handler) handleRegear(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID := getUserOption(data.Options, "user")
	cost, ok := getSilverOption(data.Options, "silver")
	if userID == "" || !ok {
		respondEphemeral(s, i, "❌ user and silver are required")
		return
	}

	id, err := h.engine.CreateRegearRequest(ctx, i.GuildID, userID, cost)
	if err != nil {
		h.fail(s, i, "create regear request", err)
		return
	}

	reduced, _ := silver.RegearShare(cost, silver.TierReduced)
	content := fmt.Sprintf("**Regear Request** `%s`\nMember: %s\nRequested by: %s\nEstimated cost: %s silver (70%%: %s)",
		id, mention(userID), mention(interactionUserID(i)), formatSilver(cost), formatSilver(reduced))
	if url := getAttachmentURL(data, "death_screenshot"); url != "" {
		content += "\n" + url
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Approve 100%",
							Style:    discordgo.SuccessButton,
							CustomID: customID(actionRegearFull, id),
						},
						discordgo.Button{
							Label:    "Approve 70%",
							Style:    discordgo.PrimaryButton,
							CustomID: customID(actionRegearReduced, id),
						},
						discordgo.Button{
							Label:    "Reject",
							Style:    discordgo.DangerButton,
							CustomID: customID(actionRegearReject, id),
						},
					},
				},
			},
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
	if err != nil {
		h.log.Warn("failed to post regear request", zap.String("request_id", id), zap.Error(err))
	}
}

func (h *Handler) handleRegearApprove(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id, action string) {
	tier := silver.TierFull
	if action == actionRegearReduced {
		tier = silver.TierReduced
	}
	approver := interactionUserID(i)
	res, err := h.engine.SettleRegear(ctx, id, approver, tier)
	if err != nil {
		h.fail(s, i, "settle regear", err)
		return
	}
	rate := "100%"
	if tier == silver.TierReduced {
		rate = "70%"
	}
	respondUpdate(s, i, fmt.Sprintf("%s\n✅ Approved at %s by %s: %s silver credited to %s",
		i.Message.Content, rate, mention(approver), formatSilver(res.Amount), mention(res.UserID)))
}

func (h *Handler) handleRegearReject(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string) {
	approver := interactionUserID(i)
	if err := h.engine.RejectRegear(ctx, id, approver); err != nil {
		h.fail(s, i, "reject regear", err)
		return
	}
	respondUpdate(s, i, fmt.Sprintf("%s\n✖️ Rejected by %s", i.Message.Content, mention(approver)))
}

func (h *Handler) handleBuyback(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID := getUserOption(data.Options, "user")
	amount, ok := getSilverOption(data.Options, "silver")
	if userID == "" || !ok {
		respondEphemeral(s, i, "❌ user and silver are required")
		return
	}
	value, modifier, err := h.engine.BuybackQuote(ctx, i.GuildID, amount)
	if err != nil {
		h.fail(s, i, "buyback quote", err)
		return
	}
	respondText(s, i, fmt.Sprintf("💰 Buyback for %s: %s silver (%s of %s)",
		mention(userID), formatSilver(value), formatPercent(modifier), formatSilver(amount)))
}
