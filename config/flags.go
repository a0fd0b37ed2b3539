package config

import "gopkg.in/urfave/cli.v1"

const (
	DefaultDataDir          = "datadir"
	DefaultJurorCount       = 10
	DefaultPoolSize         = 10000
	DefaultMinStake         = uint64(100_000_000)
	DefaultMaxAppeals       = 3
	DefaultFee              = uint64(10_000_000_000)
	DefaultCoefficient      = 15
	DefaultTreasuryShareFee = 5
	DefaultTreasuryShareNvr = 5
	DefaultEmptyVotePenalty = 5
	DefaultThreshold        = 2

	DefaultResponseMs = int64(24 * 60 * 60 * 1000)
	DefaultDrawMs     = int64(60 * 60 * 1000)
	DefaultEvidenceMs = int64(48 * 60 * 60 * 1000)
	DefaultVotingMs   = int64(48 * 60 * 60 * 1000)
	DefaultAppealMs   = int64(24 * 60 * 60 * 1000)
)

var (
	CfgFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "JSON configuration file",
	}
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "datadir for court state",
	}
	VerbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Log verbosity",
		Value: 3,
	}
	JurorCountFlag = cli.IntFlag{
		Name:  "jurors",
		Usage: "Jurors drawn per dispute",
	}
	MinStakeFlag = cli.Uint64Flag{
		Name:  "minstake",
		Usage: "Minimum stake to qualify for a draw",
	}
	FeeFlag = cli.Uint64Flag{
		Name:  "fee",
		Usage: "Dispute fee per party",
	}
	MaxAppealsFlag = cli.UintFlag{
		Name:  "maxappeals",
		Usage: "Appeal rounds allowed per dispute",
	}
	SanctionModelFlag = cli.UintFlag{
		Name:  "sanction",
		Usage: "Sanction model: 0 fixed, 1 minority-scaled, 2 quadratic",
	}
)
