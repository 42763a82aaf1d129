package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/LucaDeLeo/realitycam-sub001/attest"
	"github.com/LucaDeLeo/realitycam-sub001/challenge"
	"github.com/LucaDeLeo/realitycam-sub001/cmd/flags"
	"github.com/LucaDeLeo/realitycam-sub001/httpserver"
	"github.com/LucaDeLeo/realitycam-sub001/registry"
	"github.com/LucaDeLeo/realitycam-sub001/storage"
)

var cliFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.TeamIDFlag,
	flags.BundleIDFlag,
	flags.ArtifactStoreFlag,
	flags.AllowUnverifiedBypassFlag,
	flags.ChallengeTTLFlag,
	flags.ChallengeRateFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "device-auth-server",
		Usage: "Serve the device attestation and authentication API",
		Flags: cliFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))

			verifier, err := attest.NewVerifier(attest.Config{
				TeamID:   cCtx.String(flags.TeamIDFlag.Name),
				BundleID: cCtx.String(flags.BundleIDFlag.Name),
				Log:      logger,
			})
			if err != nil {
				logger.Error("Failed to create attestation verifier", "err", err)
				return err
			}

			artifacts, err := storage.NewFactory(logger).StoreFor(cCtx.String(flags.ArtifactStoreFlag.Name))
			if err != nil {
				logger.Error("Failed to create artifact store", "err", err)
				return err
			}

			challenges := challenge.NewStore(challenge.Config{
				TTL:          cCtx.Duration(flags.ChallengeTTLFlag.Name),
				MaxPerWindow: cCtx.Int(flags.ChallengeRateFlag.Name),
				Log:          logger,
			})
			defer challenges.Close()

			devices := registry.NewMemoryRegistry()

			handler := httpserver.NewHandler(devices, challenges, verifier, artifacts, logger)
			auth := httpserver.NewRequestAuthenticator(httpserver.AuthenticatorConfig{
				Devices: devices,
				AppIDHash: attest.AppIDHash(
					cCtx.String(flags.TeamIDFlag.Name),
					cCtx.String(flags.BundleIDFlag.Name),
				),
				Log:                   logger,
				AllowUnverifiedBypass: cCtx.Bool(flags.AllowUnverifiedBypassFlag.Name),
			})

			server, err := httpserver.New(cfg, handler, auth)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
