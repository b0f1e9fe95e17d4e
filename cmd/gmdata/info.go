package main

import (
	"fmt"
	"strings"

	"github.com/jchantrell/gmdata/internal/utils"
	"github.com/spf13/cobra"
)

var infoChunk string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarise the resources and chunks of an archive",
	Long: `Info decodes the archive and prints its title, version, resource counts,
audio groups and chunk tree. With --chunk it lists the offset table of any
chunk instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(cfg)
		if err != nil {
			return err
		}

		if infoChunk == "" {
			fmt.Print(a.Summary())
			return nil
		}

		tag := strings.ToUpper(infoChunk)
		list, err := a.PointerList(tag)
		if err != nil {
			return fmt.Errorf("listing chunk %s: %w", tag, err)
		}

		fmt.Printf("Chunk %s: %d entries\n", tag, list.Len())
		fmt.Printf("%-8s %-12s %s\n", "Index", "Offset", "Size")
		fmt.Println(strings.Repeat("-", 32))
		for _, r := range list.Entries() {
			fmt.Printf("%-8d 0x%08x   %s\n", r.Index, r.Absolute(), utils.Bytes(int64(r.Len())))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVar(&infoChunk, "chunk", "", "list the offset table of a chunk (e.g. SPRT)")
}
