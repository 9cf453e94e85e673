package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"earnings/events"
)

// Config holds bot configuration
type Config struct {
	Token     string
	ChannelID string
}

// embedSender is the part of a discord session the notifier needs
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts period closure activity to a Discord channel
type Notifier struct {
	channelID string
	session   *discordgo.Session
	sender    embedSender
}

// New opens a Discord session and subscribes the notifier to the bus
func New(config Config, eventBus *events.Bus) (*Notifier, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	n := &Notifier{
		channelID: config.ChannelID,
		session:   dg,
		sender:    dg,
	}
	n.Subscribe(eventBus)

	log.WithField("channelID", config.ChannelID).Info("Discord notifier connected")
	return n, nil
}

// Subscribe registers the notifier's handlers on the bus
func (n *Notifier) Subscribe(eventBus *events.Bus) {
	eventBus.Subscribe(events.EventTypePlatformsFrozen, n.handle)
	eventBus.Subscribe(events.EventTypePlatformsUnfrozen, n.handle)
	eventBus.Subscribe(events.EventTypePeriodClosed, n.handle)
	eventBus.Subscribe(events.EventTypeRateActivated, n.handle)
}

func (n *Notifier) handle(ctx context.Context, event events.Event) {
	embed := buildEmbed(event)
	if embed == nil {
		return
	}

	if _, err := n.sender.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"channelID": n.channelID,
		}).WithError(err).Error("Failed to post notification")
	}
}

// Close closes the Discord session
func (n *Notifier) Close() error {
	if n.session == nil {
		return nil
	}
	return n.session.Close()
}
