package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/noah-isme/curriculum-api/internal/lifecycle"
	"github.com/noah-isme/curriculum-api/internal/models"
)

var headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

func newFSMCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fsm",
		Short: "Print the lifecycle transition tables and the role policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeTables(cmd.OutOrStdout())
		},
	}
}

func writeTables(out io.Writer) error {
	writeMachine(out, lifecycle.Versions)
	writeMachine(out, lifecycle.Approvals)
	writeMachine(out, lifecycle.Mappings)
	return writePolicy(out, lifecycle.DefaultPolicy)
}

func writeMachine[S ~string](out io.Writer, m *lifecycle.Machine[S]) {
	fmt.Fprintln(out, headingStyle.Render(m.Name()))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tEVENT\tTO\tORIGIN")
	for _, rule := range m.Rules() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rule.From, rule.Event, rule.To, rule.Origin)
	}
	_ = tw.Flush()
	fmt.Fprintln(out)
}

func writePolicy(out io.Writer, policy lifecycle.RolePolicy) error {
	fmt.Fprintln(out, headingStyle.Render("role policy"))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"ACTION"}
	for _, role := range models.Roles {
		header = append(header, strings.ToUpper(string(role)))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, action := range lifecycle.Actions {
		row := []string{string(action)}
		for _, role := range models.Roles {
			mark := "-"
			if policy.Allows(role, action) {
				mark = "yes"
			}
			row = append(row, mark)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
