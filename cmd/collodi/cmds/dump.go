package cmds

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/collodi/pkg/chatexport"
	"github.com/go-go-golems/collodi/pkg/outputsync"
)

var DumpCmd = &cobra.Command{
	Use:   "dump <archive>",
	Short: "Write the raw JSON of every conversation without rendering anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dumpDir, _ := cmd.Flags().GetString("dump-dir")

		archive, err := chatexport.OpenArchive(args[0])
		if err != nil {
			return err
		}

		conversations, err := archive.Conversations()
		if err != nil {
			return err
		}

		for _, conv := range conversations {
			if err := outputsync.DumpConversation(dumpDir, conv); err != nil {
				return err
			}
		}

		log.Info().Int("conversations", len(conversations)).Str("dir", dumpDir).Msg("dump finished")
		return nil
	},
}

func init() {
	DumpCmd.Flags().String("dump-dir", "dump", "Directory for the raw conversation JSON files")
}
