// Package commands implements the slash commands and message components of the bank bot.
package commands

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/settlement"
)

const requestTimeout = 10 * time.Second

// MemberLister lists the user IDs of everyone currently in a guild.
type MemberLister interface {
	GuildMemberIDs(ctx context.Context, guildID string) ([]string, error)
}

type Handler struct {
	engine  *settlement.Engine
	members MemberLister
	log     *zap.Logger
}

func NewHandler(engine *settlement.Engine, members MemberLister, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, members: members, log: log}
}

func (h *Handler) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		respondEphemeral(s, i, "This command only works in servers!")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	data := i.ApplicationCommandData()
	switch data.Name {
	case "lootsplit":
		h.handleLootSplit(ctx, s, i, data)
	case "undolootsplit":
		h.handleUndoLootSplit(ctx, s, i, data)
	case "regear":
		h.handleRegear(ctx, s, i, data)
	case "buyback":
		h.handleBuyback(ctx, s, i, data)
	case "balance":
		h.handleBalance(ctx, s, i, interactionUserID(i))
	case "memberbalance":
		h.handleBalance(ctx, s, i, getUserOption(data.Options, "user"))
	case "deposit":
		h.handleDeposit(ctx, s, i, data)
	case "withdraw":
		h.handleWithdraw(ctx, s, i, data)
	case "payout":
		h.handlePayout(ctx, s, i, data)
	case "totalbalance":
		h.handleTotalBalance(ctx, s, i)
	case "leaderboard":
		h.handleLeaderboard(ctx, s, i)
	case "stats":
		h.handleStats(ctx, s, i, getUserOption(data.Options, "user"))
	case "purgeaccounts":
		h.handlePurgeAccounts(ctx, s, i, data)
	case "setlootsplitmodifier":
		h.handleSetLootSplitModifier(ctx, s, i, data)
	case "setlootsplitauthrole":
		h.handleSetLootSplitAuthRole(ctx, s, i, data)
	case "setbuybackmodifier":
		h.handleSetBuybackModifier(ctx, s, i, data)
	}
}

func (h *Handler) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	data := i.MessageComponentData()
	action, id := parseCustomID(data.CustomID)
	switch action {
	case actionLootSplitSelect:
		h.handleLootSplitSelect(ctx, s, i, id, data.Values)
	case actionLootSplitConfirm:
		h.handleLootSplitConfirm(ctx, s, i, id)
	case actionLootSplitApprove:
		h.handleLootSplitApprove(ctx, s, i, id)
	case actionLootSplitReject:
		h.handleLootSplitReject(ctx, s, i, id)
	case actionRegearFull, actionRegearReduced:
		h.handleRegearApprove(ctx, s, i, id, action)
	case actionRegearReject:
		h.handleRegearReject(ctx, s, i, id)
	case actionPurgeAllApprove:
		h.handlePurgeAllApprove(ctx, s, i)
	case actionPurgeAllDeny, actionPurgeOneDeny:
		h.handlePurgeDeny(ctx, s, i)
	case actionPurgeOneApprove:
		h.handlePurgeOneApprove(ctx, s, i, id)
	}
}

// fail logs unexpected engine errors and answers the user privately.
func (h *Handler) fail(s *discordgo.Session, i *discordgo.InteractionCreate, op string, err error) {
	msg := errorMessage(err)
	if msg == errorMessage(nil) {
		h.log.Error(op+" failed",
			zap.String("guild_id", i.GuildID),
			zap.String("user_id", interactionUserID(i)),
			zap.Error(err))
	}
	if rerr := respondEphemeral(s, i, msg); rerr != nil {
		h.log.Warn("failed to respond to interaction", zap.String("op", op), zap.Error(rerr))
	}
}
