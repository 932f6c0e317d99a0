package commands

import (
	"taskboard/internal/config"
	"taskboard/internal/live"
)

// newSubscriber builds a live subscriber from the settings. The session
// store supplies the bearer token on every connect.
func newSubscriber(cfg *config.Config, onState func(live.State)) *live.Subscriber {
	s := cfg.Settings
	return live.NewSubscriber(&live.WebSocketDialer{URL: s.WSURL}, live.Options{
		Topic:          s.Topic,
		ReconnectDelay: s.ReconnectDelay,
		Tokens:         cfg.Session(),
		Logger:         cfg.Log(),
		OnState:        onState,
	})
}
