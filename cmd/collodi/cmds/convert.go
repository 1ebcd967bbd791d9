package cmds

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/collodi/pkg/chatexport"
	"github.com/go-go-golems/collodi/pkg/outputsync"
	"github.com/go-go-golems/collodi/pkg/render"
)

var ConvertCmd = &cobra.Command{
	Use:   "convert <archive>",
	Short: "Convert an export archive into one markdown document per conversation",
	Long: `Convert reads a ChatGPT export (either the .zip or an already extracted
directory), renders the current branch of every conversation into a markdown
document with a frontmatter header, and reconciles the results against the
output directory: unchanged documents are not rewritten, retitled
conversations are renamed instead of duplicated, and manually added
frontmatter keys survive regeneration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		attachmentsDir, _ := cmd.Flags().GetString("attachments-dir")
		createdKey, _ := cmd.Flags().GetString("created-key")
		updatedKey, _ := cmd.Flags().GetString("updated-key")
		dumpDir, _ := cmd.Flags().GetString("dump-dir")
		showModel, _ := cmd.Flags().GetBool("show-model")

		archive, err := chatexport.OpenArchive(args[0])
		if err != nil {
			return err
		}

		conversations, err := archive.Conversations()
		if err != nil {
			return err
		}

		renderer := &render.Renderer{
			Attachments: render.NewAttachmentStore(archive.Dir, output, attachmentsDir),
			ShowModel:   showModel,
		}
		assembler := render.NewAssembler(renderer, createdKey, updatedKey)
		syncer := outputsync.NewSynchronizer(output)

		written := 0
		skipped := 0
		for _, conv := range conversations {
			doc, err := assembler.Assemble(conv)
			if err != nil {
				return err
			}

			res, err := syncer.Sync(doc)
			if err != nil {
				return err
			}
			if res.Written {
				written++
			} else {
				skipped++
			}

			if dumpDir != "" {
				if err := outputsync.DumpConversation(dumpDir, conv); err != nil {
					return err
				}
			}

			log.Debug().
				Str("title", conv.Title).
				Str("file", res.Name).
				Bool("written", res.Written).
				Bool("renamed", res.Renamed).
				Msg("processed conversation")
		}

		log.Info().
			Int("conversations", len(conversations)).
			Int("written", written).
			Int("unchanged", skipped).
			Str("output", output).
			Msg("conversion finished")

		return nil
	},
}

func init() {
	ConvertCmd.Flags().StringP("output", "o", "output", "Output directory for the markdown documents")
	ConvertCmd.Flags().String("attachments-dir", "attachments", "Subdirectory of the output directory for attachment copies")
	ConvertCmd.Flags().String("created-key", "created", "Frontmatter key for the conversation creation timestamp")
	ConvertCmd.Flags().String("updated-key", "updated", "Frontmatter key for the conversation update timestamp")
	ConvertCmd.Flags().String("dump-dir", "", "If set, write the raw JSON of every conversation into this directory")
	ConvertCmd.Flags().Bool("show-model", false, "Annotate assistant responses with the model that produced them")
}
