// Command forgebot runs the workshop order bot.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/m3rciful/forgebot/core/bootstrap"
	"github.com/m3rciful/forgebot/core/buildinfo"
	corecmd "github.com/m3rciful/forgebot/core/cmd"
	"github.com/m3rciful/forgebot/forge/app"
	"github.com/m3rciful/forgebot/forge/config"
	"github.com/m3rciful/forgebot/migrations"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println("forgebot", buildinfo.String())
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := carrier.(*config.Config)
			res, err := bootstrap.Run(bootstrap.Options{
				Config:     cfg.CoreConfig(),
				Database:   cfg.Database,
				Migrations: migrations.FS,
			})
			if err != nil {
				return nil, err
			}
			a, err := app.New(cfg, res.DB)
			if err != nil {
				_ = res.DB.Close()
				return nil, err
			}
			return a, nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
