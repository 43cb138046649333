package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/method/builtin"
)

// methodsCommand creates the methods command listing the drawing catalog.
func (c *CLI) methodsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the available drawing methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(StyleTitle.Render("Drawing methods"))
			printNewline()
			for _, m := range builtin.All {
				fmt.Println("  " + StyleHighlight.Render(m.Name()))
				printDetail("%s", m.Info())
			}
			printNewline()
			printDetail("Select with 'penplot draw --method <name>' and pass options as --param key=value")
			return nil
		},
	}
}
