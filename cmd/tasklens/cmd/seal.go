package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Tasklens/internal/encryption"
)

var sealGenerateKey bool

var sealCmd = &cobra.Command{
	Use:   "seal [value]",
	Short: "Encrypt a provider key for OPENAI_API_KEY_SEALED",
	Long: `Seal a secret with the key from ENCRYPTION_KEY (or the file at
ENCRYPTION_KEY_PATH). With --generate-key, print a new encryption key instead.

Examples:
  tasklens seal --generate-key
  ENCRYPTION_KEY=... tasklens seal sk-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sealGenerateKey {
			key, err := encryption.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		}
		if len(args) != 1 {
			return fmt.Errorf("value to seal is required")
		}

		key, err := encryption.LoadKey(os.Getenv("ENCRYPTION_KEY"), os.Getenv("ENCRYPTION_KEY_PATH"))
		if err != nil {
			return err
		}
		s, err := encryption.NewSealer(key)
		if err != nil {
			return err
		}
		tok, err := s.Seal(args[0])
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	sealCmd.Flags().BoolVar(&sealGenerateKey, "generate-key", false, "Print a new random encryption key")
	rootCmd.AddCommand(sealCmd)
}
