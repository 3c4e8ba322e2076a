package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/settlement"
)

const leaderboardSize = 10

func (h *Handler) handleBalance(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	if userID == "" {
		respondEphemeral(s, i, "❌ user is required")
		return
	}
	a, err := h.engine.Balance(ctx, ledger.Key{GuildID: i.GuildID, UserID: userID})
	if errors.Is(err, settlement.ErrAccountNotFound) {
		respondEphemeral(s, i, fmt.Sprintf("%s has no payout balance yet.", mention(userID)))
		return
	}
	if err != nil {
		h.fail(s, i, "balance", err)
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("💰 %s: %s silver", mention(userID), formatSilver(a.Balance)))
}

func (h *Handler) handleDeposit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID := getUserOption(data.Options, "user")
	amount, ok := getSilverOption(data.Options, "amount")
	if userID == "" || !ok {
		respondEphemeral(s, i, "❌ user and amount are required")
		return
	}
	actor := interactionUserID(i)
	a, err := h.engine.Deposit(ctx, ledger.Key{GuildID: i.GuildID, UserID: userID}, amount, actor)
	if err != nil {
		h.fail(s, i, "deposit", err)
		return
	}
	h.logReason("deposit", i, userID, getStringOption(data.Options, "reason"))
	respondText(s, i, fmt.Sprintf("➕ %s deposited %s silver to %s%s\nNew balance: %s silver",
		mention(actor), formatSilver(amount), mention(userID), reasonSuffix(data), formatSilver(a.Balance)))
}

func (h *Handler) handleWithdraw(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID := getUserOption(data.Options, "user")
	amount, ok := getSilverOption(data.Options, "amount")
	if userID == "" || !ok {
		respondEphemeral(s, i, "❌ user and amount are required")
		return
	}
	actor := interactionUserID(i)
	a, err := h.engine.Withdraw(ctx, ledger.Key{GuildID: i.GuildID, UserID: userID}, amount, actor)
	if err != nil {
		h.fail(s, i, "withdraw", err)
		return
	}
	h.logReason("withdraw", i, userID, getStringOption(data.Options, "reason"))
	respondText(s, i, fmt.Sprintf("➖ %s withdrew %s silver from %s%s\nNew balance: %s silver",
		mention(actor), formatSilver(amount), mention(userID), reasonSuffix(data), formatSilver(a.Balance)))
}

func (h *Handler) handlePayout(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID := getUserOption(data.Options, "user")
	if userID == "" {
		respondEphemeral(s, i, "❌ user is required")
		return
	}
	actor := interactionUserID(i)
	paid, err := h.engine.Payout(ctx, ledger.Key{GuildID: i.GuildID, UserID: userID}, actor)
	if err != nil {
		h.fail(s, i, "payout", err)
		return
	}
	h.logReason("payout", i, userID, getStringOption(data.Options, "reason"))
	respondText(s, i, fmt.Sprintf("💸 %s paid out %s silver to %s%s",
		mention(actor), formatSilver(paid), mention(userID), reasonSuffix(data)))
}

func (h *Handler) handleTotalBalance(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	total, err := h.engine.TotalBalance(ctx, i.GuildID)
	if err != nil {
		h.fail(s, i, "total balance", err)
		return
	}
	respondText(s, i, fmt.Sprintf("🏦 Total owed to members: %s silver", formatSilver(total)))
}

func (h *Handler) handleLeaderboard(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	accounts, err := h.engine.Leaderboard(ctx, i.GuildID, leaderboardSize)
	if err != nil {
		h.fail(s, i, "leaderboard", err)
		return
	}
	respondText(s, i, formatLeaderboard(accounts))
}

func formatLeaderboard(accounts []ledger.Account) string {
	if len(accounts) == 0 {
		return "No payout balances yet."
	}
	var b strings.Builder
	b.WriteString("🏆 **Payout Leaderboard**\n")
	for idx, a := range accounts {
		fmt.Fprintf(&b, "%d. %s: %s silver\n", idx+1, mention(a.UserID), formatSilver(a.Balance))
	}
	return b.String()
}

func reasonSuffix(data discordgo.ApplicationCommandInteractionData) string {
	if r := strings.TrimSpace(getStringOption(data.Options, "reason")); r != "" {
		return " (" + r + ")"
	}
	return ""
}

func (h *Handler) logReason(op string, i *discordgo.InteractionCreate, userID, reason string) {
	h.log.Info("balance adjusted",
		zap.String("op", op),
		zap.String("guild_id", i.GuildID),
		zap.String("user_id", userID),
		zap.String("actor_id", interactionUserID(i)),
		zap.String("reason", reason))
}

func (h *Handler) handleStats(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	if userID == "" {
		respondEphemeral(s, i, "❌ user is required")
		return
	}
	stats, err := h.engine.ParticipantStats(ctx, i.GuildID, userID)
	if err != nil {
		h.fail(s, i, "stats", err)
		return
	}
	if stats.Splits == 0 {
		respondEphemeral(s, i, fmt.Sprintf("No loot splits found for %s", mention(userID)))
		return
	}
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         formatStats(stats),
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
}

func formatStats(st settlement.ParticipantStats) string {
	return strings.Join([]string{
		fmt.Sprintf("🏆 **Member statistics for %s**", mention(st.UserID)),
		fmt.Sprintf("- Took part in **%d** loot splits", st.Splits),
		fmt.Sprintf("- Worth **%s** silver to the guild", formatSilver(st.Gross)),
		fmt.Sprintf("- Of which **%s** silver was paid to %s", formatSilver(st.Earned), mention(st.UserID)),
	}, "\n")
}
