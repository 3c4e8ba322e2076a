package commands

import "github.com/bwmarrin/discordgo"

func GetCommands() []*discordgo.ApplicationCommand {
	admin := int64(discordgo.PermissionAdministrator)
	moderate := int64(discordgo.PermissionModerateMembers)
	minZero := 0.0

	return []*discordgo.ApplicationCommand{
		{
			Name:         "lootsplit",
			Description:  "Log a loot split for a group of users",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "silver",
					Description: "The estimated silver value from the loot split tab",
					Required:    true,
					MinValue:    &minZero,
				},
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "silverbags",
					Description: "Silver from silver bags donated to the guild for redistribution",
					Required:    true,
					MinValue:    &minZero,
				},
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "screenshot",
					Description: "A screenshot of the loot",
					Required:    true,
				},
			},
		},
		{
			Name:         "undolootsplit",
			Description:  "Reverse an approved loot split",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "lootsplitid",
					Description: "The loot split ID",
					Required:    true,
				},
			},
		},
		{
			Name:         "regear",
			Description:  "Request a regear for a member",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The member to regear", true),
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "silver",
					Description: "Estimated cost of the lost gear",
					Required:    true,
					MinValue:    &minZero,
				},
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "death_screenshot",
					Description: "A screenshot of the death",
					Required:    true,
				},
			},
		},
		{
			Name:         "buyback",
			Description:  "Preview what the guild pays to buy back loot",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The seller", true),
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "silver",
					Description: "Market value of the loot",
					Required:    true,
					MinValue:    &minZero,
				},
			},
		},
		{
			Name:         "balance",
			Description:  "Show your payout balance",
			DMPermission: boolPtr(false),
		},
		{
			Name:         "memberbalance",
			Description:  "Show a member's payout balance",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The member", true),
			},
		},
		{
			Name:         "deposit",
			Description:  "Add silver to a member's payout balance",
			DMPermission: boolPtr(false),
			Options:      amountOptions(),
		},
		{
			Name:         "withdraw",
			Description:  "Remove silver from a member's payout balance",
			DMPermission: boolPtr(false),
			Options:      amountOptions(),
		},
		{
			Name:         "payout",
			Description:  "Pay out a member's full balance",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The member to pay", true),
				reasonOption(),
			},
		},
		{
			Name:         "totalbalance",
			Description:  "Show the total silver owed to members",
			DMPermission: boolPtr(false),
		},
		{
			Name:         "leaderboard",
			Description:  "Show the highest payout balances",
			DMPermission: boolPtr(false),
		},
		{
			Name:                     "stats",
			Description:              "Show a member's loot split activity",
			DMPermission:             boolPtr(false),
			DefaultMemberPermissions: &moderate,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The member to report on", true),
			},
		},
		{
			Name:         "purgeaccounts",
			Description:  "Delete payout accounts of users who left the server",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Purge only this user's account", false),
			},
		},
		{
			Name:                     "setlootsplitmodifier",
			Description:              "Set the guild's cut of loot splits",
			DMPermission:             boolPtr(false),
			DefaultMemberPermissions: &admin,
			Options:                  []*discordgo.ApplicationCommandOption{modifierOption()},
		},
		{
			Name:                     "setlootsplitauthrole",
			Description:              "Set the role allowed to approve payouts",
			DMPermission:             boolPtr(false),
			DefaultMemberPermissions: &admin,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "The approver role",
					Required:    true,
				},
			},
		},
		{
			Name:                     "setbuybackmodifier",
			Description:              "Set the fraction of market value paid for buybacks",
			DMPermission:             boolPtr(false),
			DefaultMemberPermissions: &admin,
			Options:                  []*discordgo.ApplicationCommandOption{modifierOption()},
		},
	}
}

func userOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Why the balance changes",
		Required:    false,
	}
}

func amountOptions() []*discordgo.ApplicationCommandOption {
	minOne := 1.0
	return []*discordgo.ApplicationCommandOption{
		userOption("user", "The member", true),
		{
			Type:        discordgo.ApplicationCommandOptionNumber,
			Name:        "amount",
			Description: "Amount of silver",
			Required:    true,
			MinValue:    &minOne,
		},
		reasonOption(),
	}
}

func modifierOption() *discordgo.ApplicationCommandOption {
	minZero := 0.0
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionNumber,
		Name:        "modifier",
		Description: "A fraction between 0 and 1, e.g. 0.7",
		Required:    true,
		MinValue:    &minZero,
		MaxValue:    1,
	}
}

func boolPtr(b bool) *bool {
	return &b
}
