package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// memberPageSize is the largest page the guild members endpoint returns.
const memberPageSize = 1000

// memberSession is the slice of *discordgo.Session used for role and membership lookups.
type memberSession interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

// Members answers role and membership questions from the Discord API. It backs both the
// settlement authorizer and the purge member list.
type Members struct {
	session memberSession
	state   *discordgo.State
}

func NewMembers(s *discordgo.Session) *Members {
	return &Members{session: s, state: s.State}
}

func (m *Members) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if m.state != nil {
		if mem, err := m.state.Member(guildID, userID); err == nil {
			return mem, nil
		}
	}
	return m.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
}

// HasRole reports whether the user currently holds roleID in the guild.
func (m *Members) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	if roleID == "" || userID == "" {
		return false, nil
	}
	mem, err := m.member(ctx, guildID, userID)
	if err != nil {
		return false, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	return hasRole(mem, roleID), nil
}

func hasRole(mem *discordgo.Member, roleID string) bool {
	if mem == nil {
		return false
	}
	for _, r := range mem.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// GuildMemberIDs pages through every member of the guild.
func (m *Members) GuildMemberIDs(ctx context.Context, guildID string) ([]string, error) {
	var (
		ids   []string
		after string
	)
	for {
		page, err := m.session.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list members of guild %s: %w", guildID, err)
		}
		for _, mem := range page {
			if mem.User != nil {
				ids = append(ids, mem.User.ID)
			}
		}
		if len(page) < memberPageSize || len(page) == 0 || page[len(page)-1].User == nil {
			return ids, nil
		}
		after = page[len(page)-1].User.ID
	}
}
