/* discord.go
 * Posts offers and milestones to a Discord channel
 */

package announce

import (
	"context"
	"fmt"
	"strings"

	"huntparty/models"
	"huntparty/services"

	"github.com/bwmarrin/discordgo"
)

// ChannelSender is the part of a Discord session the announcer needs.
type ChannelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Ensure *discordgo.Session implements ChannelSender
var _ ChannelSender = (*discordgo.Session)(nil)

type Discord struct {
	session   ChannelSender
	channelID string
}

var _ services.Announcer = (*Discord)(nil)

// NewDiscord creates a bot session for token. Only REST calls are made, so
// the gateway is never opened.
func NewDiscord(token, channelID string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return NewDiscordWithSender(session, channelID), nil
}

func NewDiscordWithSender(sender ChannelSender, channelID string) *Discord {
	return &Discord{session: sender, channelID: channelID}
}

// Announce posts one event. Event kinds other than offers and milestones
// are ignored.
func (d *Discord) Announce(ctx context.Context, event models.ActivityEvent) error {
	content, ok := Format(event)
	if !ok {
		return nil
	}
	if _, err := d.session.ChannelMessageSend(d.channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord announce event %d: %w", event.ID, err)
	}
	return nil
}

// Format renders the announcement text and reports whether the event is
// worth announcing.
func Format(event models.ActivityEvent) (string, bool) {
	name := event.DisplayName
	if name == "" {
		name = fmt.Sprintf("user %d", event.UserID)
	}

	var res strings.Builder
	switch event.Type {
	case models.EventOfferReceived:
		res.WriteString(fmt.Sprintf(":tada: **%s** %s", name, event.Type.Verb()))
		if event.Company != nil {
			res.WriteString(" from " + *event.Company)
			if event.Role != nil {
				res.WriteString(" (" + *event.Role + ")")
			}
		}
		res.WriteString(fmt.Sprintf("! +%d points", event.PointsDelta))
	case models.EventMilestoneHit:
		label := ""
		if event.MilestoneLabel != nil {
			label = *event.MilestoneLabel
		}
		res.WriteString(fmt.Sprintf(":trophy: **%s** %s: `%s`", name, event.Type.Verb(), label))
	default:
		return "", false
	}
	return res.String(), true
}
