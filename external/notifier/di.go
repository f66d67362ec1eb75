package notifier

import (
	"github.com/samber/do/v2"

	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/notifier"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (notifier.Notifier, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.NotifierKind == config.NotifierDiscord {
			return NewDiscordNotifier(c.DiscordToken, c.DiscordChannelID)
		}
		return NewWebhookNotifier(c.NotifyWebhookURL), nil
	})
}
