package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSitesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Inspect radio sites",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the sites the backend reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client(cmd.Context())
			if err != nil {
				return err
			}
			sites, err := c.Metrics().FetchSites(cmd.Context())
			if err != nil {
				return err
			}
			if e.opts.JSON {
				return e.printJSON(cmd.OutOrStdout(), sites)
			}
			if len(sites) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sites reported.")
				return nil
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tREGION\tSTATUS")
			for _, s := range sites {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Name, s.Region, s.Status)
			}
			return tw.Flush()
		},
	})
	return cmd
}
