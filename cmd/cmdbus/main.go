// Command cmdbus runs an example bot on top of the command bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/m3rciful/cmdbus/core/bootstrap"
	"github.com/m3rciful/cmdbus/core/buildinfo"
	corecmd "github.com/m3rciful/cmdbus/core/cmd"
	"github.com/m3rciful/cmdbus/core/telegram/bot"
	"github.com/m3rciful/cmdbus/core/telegram/commands"
)

func main() {
	showVersion := flag.Bool("version", false, "print build info and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CMDBUS_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return LoadConfig(path)
		},
		Bootstrap: bootstrapApp,
	})
	if err != nil {
		log.Fatal(err)
	}
}

type app struct {
	cfg   *AppConfig
	infra *bootstrap.Result
}

func bootstrapApp(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*AppConfig)
	if !ok {
		return nil, fmt.Errorf("unexpected config type %T", carrier)
	}
	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
		Consumer: "cmdbus",
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, infra: infra}, nil
}

func (a *app) TelegramRunOptions() (bot.RunOptions, error) {
	opts := bot.RunOptions{
		Config:      &a.cfg.Config,
		Help:        true,
		HelpAliases: []string{"h", "?"},
		OnAdminReject: func(c *commands.Context) error {
			return c.Error("This command is for the bot admin only.", false)
		},
	}
	var history historySource
	if a.infra.Journal != nil {
		opts.Journal = a.infra.Journal
		opts.Offsets = a.infra.Offsets
		history = a.infra.Journal
	}
	opts.Commands = appCommands(a.cfg.Feedback, history)
	return opts, nil
}

func (a *app) Close() error { return a.infra.Close() }
