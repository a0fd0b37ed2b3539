package main

import (
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/NivraLabs/nivra-court-sub000/config"
	"github.com/NivraLabs/nivra-court-sub000/crypto/votes"
	"github.com/NivraLabs/nivra-court-sub000/log"
	"github.com/NivraLabs/nivra-court-sub000/node"
)

var version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "nivra-court"
	app.Version = version
	app.Usage = "stake-weighted arbitration court node"

	app.Flags = []cli.Flag{
		config.CfgFileFlag,
		config.DataDirFlag,
		config.VerbosityFlag,
		config.JurorCountFlag,
		config.MinStakeFlag,
		config.FeeFlag,
		config.MaxAppealsFlag,
		config.SanctionModelFlag,
	}

	app.Action = func(ctx *cli.Context) error {
		cfg := config.MakeConfig(ctx)
		log.SetHandler(log.LvlFilterHandler(log.LvlFromInt(cfg.Verbosity), log.StdoutHandler()))

		verifier := votes.NewAEADVerifier(cfg.Court.MasterSecrets())
		n, err := node.NewNode(cfg, verifier)
		if err != nil {
			return err
		}
		if err := n.Start(); err != nil {
			return err
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			n.Stop()
		}()
		n.Wait()
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit(err.Error())
	}
}
