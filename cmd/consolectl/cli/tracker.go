package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
)

func newTasksCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Read the implementation tracker",
	}
	var filter apiclient.TaskFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List tracker tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := c.Tasks().FetchTasks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if e.opts.JSON {
				return e.printJSON(cmd.OutOrStdout(), tasks)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tTITLE\tSITE\tSTATUS\tASSIGNEE\tDUE")
			for _, t := range tasks {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Site, t.Status, t.Assignee, t.DueDate)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&filter.Status, "status", "", "only tasks in this status")
	list.Flags().StringVar(&filter.Site, "site", "", "only tasks for this site")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one task with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := e.client(cmd.Context())
			if err != nil {
				return err
			}
			detail, err := c.Tasks().FetchDetails(cmd.Context(), id)
			if err != nil {
				return err
			}
			if e.opts.JSON {
				return e.printJSON(cmd.OutOrStdout(), detail)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "#%d %s\n", detail.ID, detail.Title)
			fmt.Fprintf(out, "Site: %s  Status: %s  Assignee: %s\n", detail.Site, detail.Status, detail.Assignee)
			if detail.Notes != "" {
				fmt.Fprintf(out, "\n%s\n", detail.Notes)
			}
			fmt.Fprintf(out, "\n%d history entries\n", len(detail.History))
			return nil
		},
	}
	cmd.AddCommand(list, show)
	return cmd
}

func newDevicesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Read the WNTD device tracker",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tracked devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := c.Devices().List(cmd.Context())
			if err != nil {
				return err
			}
			if e.opts.JSON {
				return e.printJSON(cmd.OutOrStdout(), entries)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tSITE\tSERIAL\tMODEL\tSTATUS\tINSTALLED")
			for _, d := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.SiteID, d.Serial, d.Model, d.Status, d.InstalledAt)
			}
			return tw.Flush()
		},
	})
	return cmd
}
