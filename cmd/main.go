package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MimeLyc/contextual-caption-translator/internal/config"
)

// rootState is shared by the subcommands: the bound flags and the viper
// instance they are read through
type rootState struct {
	flags Flags
	v     *viper.Viper
}

func (r *rootState) config(cmd *cobra.Command) (*config.Config, error) {
	return loadConfig(cmd, r.v, &r.flags)
}

func newRootCommand() *cobra.Command {
	state := &rootState{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "cct",
		Short: "Segment ASR captions into sentences and translate them with LLM fallback",
		Long: `cct turns word-level ASR caption payloads into sentence cues and translates
them in resumable batches, rotating API keys and models when a provider
refuses a request.

Configuration comes from flags, CCT_ environment variables, a .env file
and an optional YAML config file, in that order of precedence.`,
		SilenceUsage: true,
	}
	setupFlags(cmd.PersistentFlags(), &state.flags)
	if err := bindFlags(state.v, cmd.PersistentFlags()); err != nil {
		panic(err)
	}

	cmd.AddCommand(
		newServeCommand(state),
		newSegmentCommand(state),
		newTranslateCommand(state),
		newDiagnoseCommand(state),
		newLogsCommand(state),
	)
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
