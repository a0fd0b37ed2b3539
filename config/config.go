package config

import (
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/log"
)

type Config struct {
	DataDir   string
	Verbosity int
	Court     *CourtConfig
}

// CourtConfig carries the court's economic and timing parameters. Changes
// apply to newly opened disputes only; every dispute snapshots these values
// at creation.
type CourtConfig struct {
	ID         string
	JurorCount int
	MinStake   uint64
	PoolSize   int
	MaxAppeals uint32

	Fee              uint64
	SanctionModel    uint8
	Coefficient      uint64
	TreasuryShareFee uint64
	TreasuryShareNvr uint64
	EmptyVotePenalty uint64

	ResponseMs int64
	DrawMs     int64
	EvidenceMs int64
	VotingMs   int64
	AppealMs   int64

	Threshold uint8
	// KeyServers are the hex identifiers of the vote decryption servers;
	// KeyServerSecrets optionally holds their master secrets for
	// single-node setups running the in-process verifier.
	KeyServers        []string
	KeyServerSecrets  []string
	ResetBallotsOnTie bool
}

// KeyServerIDs parses the configured key server identifiers.
func (c *CourtConfig) KeyServerIDs() []common.Hash {
	ids := make([]common.Hash, 0, len(c.KeyServers))
	for _, s := range c.KeyServers {
		ids = append(ids, common.BytesToHash(common.FromHex(s)))
	}
	return ids
}

// MasterSecrets maps key server ids to their configured master secrets.
// Empty when the node talks to external key servers.
func (c *CourtConfig) MasterSecrets() map[common.Hash][]byte {
	if len(c.KeyServerSecrets) != len(c.KeyServers) {
		return nil
	}
	masters := make(map[common.Hash][]byte, len(c.KeyServers))
	for i, s := range c.KeyServers {
		masters[common.BytesToHash(common.FromHex(s))] = common.FromHex(c.KeyServerSecrets[i])
	}
	return masters
}

func MakeConfig(ctx *cli.Context) *Config {
	cfg := getDefaultConfig()

	if file := ctx.String(CfgFileFlag.Name); file != "" {
		if err := loadConfig(file, cfg); err != nil {
			log.Error(err.Error())
		}
	}

	applyFlags(ctx, cfg)
	return cfg
}

func getDefaultConfig() *Config {
	return &Config{
		DataDir:   DefaultDataDir,
		Verbosity: 3,
		Court: &CourtConfig{
			JurorCount:       DefaultJurorCount,
			MinStake:         DefaultMinStake,
			PoolSize:         DefaultPoolSize,
			MaxAppeals:       DefaultMaxAppeals,
			Fee:              DefaultFee,
			Coefficient:      DefaultCoefficient,
			TreasuryShareFee: DefaultTreasuryShareFee,
			TreasuryShareNvr: DefaultTreasuryShareNvr,
			EmptyVotePenalty: DefaultEmptyVotePenalty,
			ResponseMs:       DefaultResponseMs,
			DrawMs:           DefaultDrawMs,
			EvidenceMs:       DefaultEvidenceMs,
			VotingMs:         DefaultVotingMs,
			AppealMs:         DefaultAppealMs,
			Threshold:        DefaultThreshold,
		},
	}
}

func applyFlags(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet(DataDirFlag.Name) {
		cfg.DataDir = ctx.String(DataDirFlag.Name)
	}
	if ctx.IsSet(VerbosityFlag.Name) {
		cfg.Verbosity = ctx.Int(VerbosityFlag.Name)
	}
	if ctx.IsSet(JurorCountFlag.Name) {
		cfg.Court.JurorCount = ctx.Int(JurorCountFlag.Name)
	}
	if ctx.IsSet(MinStakeFlag.Name) {
		cfg.Court.MinStake = ctx.Uint64(MinStakeFlag.Name)
	}
	if ctx.IsSet(FeeFlag.Name) {
		cfg.Court.Fee = ctx.Uint64(FeeFlag.Name)
	}
	if ctx.IsSet(MaxAppealsFlag.Name) {
		cfg.Court.MaxAppeals = uint32(ctx.Uint(MaxAppealsFlag.Name))
	}
	if ctx.IsSet(SanctionModelFlag.Name) {
		cfg.Court.SanctionModel = uint8(ctx.Uint(SanctionModelFlag.Name))
	}
}

func loadConfig(configPath string, conf *Config) error {
	if _, err := os.Stat(configPath); err != nil {
		return errors.Errorf("Config file cannot be found, path: %v", configPath)
	}

	if jsonFile, err := os.Open(configPath); err != nil {
		return errors.Errorf("Config file cannot be opened, path: %v", configPath)
	} else {
		byteValue, _ := ioutil.ReadAll(jsonFile)
		err := json.Unmarshal(byteValue, &conf)
		if err != nil {
			return errors.Errorf("Cannot parse JSON config, path: %v", configPath)
		}
		return nil
	}
}
