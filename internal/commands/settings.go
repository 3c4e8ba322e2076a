package commands

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

func (h *Handler) handleSetLootSplitModifier(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	modifier, ok := getSilverOption(data.Options, "modifier")
	if !ok {
		respondEphemeral(s, i, "❌ modifier is required")
		return
	}
	if err := h.engine.SetLootSplitModifier(ctx, i.GuildID, modifier); err != nil {
		h.fail(s, i, "set loot split modifier", err)
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("✅ Loot split guild cut set to %s", formatPercent(modifier)))
}

func (h *Handler) handleSetLootSplitAuthRole(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	roleID := getRoleOption(data.Options, "role")
	if err := h.engine.SetLootSplitAuthRole(ctx, i.GuildID, roleID); err != nil {
		h.fail(s, i, "set loot split auth role", err)
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("✅ Payout approver role set to <@&%s>", roleID))
}

func (h *Handler) handleSetBuybackModifier(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	modifier, ok := getSilverOption(data.Options, "modifier")
	if !ok {
		respondEphemeral(s, i, "❌ modifier is required")
		return
	}
	if err := h.engine.SetBuybackModifier(ctx, i.GuildID, modifier); err != nil {
		h.fail(s, i, "set buyback modifier", err)
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("✅ Buyback rate set to %s", formatPercent(modifier)))
}
