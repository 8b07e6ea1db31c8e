package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/careers-cli/internal/model"
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Review pending discovery drafts",
	Long:  "Commands for listing, approving, and dismissing programme and role drafts.",
}

// -- drafts list --

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending drafts for a firm",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		firmID, _ := cmd.Flags().GetInt64("firm")

		programs, err := st.ListPendingProgramDrafts(ctx, firmID)
		if err != nil {
			return eris.Wrap(err, "drafts list")
		}
		roles, err := st.ListPendingRoleDrafts(ctx, firmID)
		if err != nil {
			return eris.Wrap(err, "drafts list")
		}

		if len(programs) == 0 && len(roles) == 0 {
			fmt.Fprintln(os.Stderr, "No pending drafts.")
			return nil
		}

		formatDrafts(os.Stdout, programs, roles)
		return nil
	},
}

// -- drafts show --

var draftsShowCmd = &cobra.Command{
	Use:   "show <program-draft-id>",
	Short: "Show a programme draft as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, err := parseDraftID(args[0])
		if err != nil {
			return err
		}

		draft, err := st.GetProgramDraft(ctx, id)
		if err != nil {
			return eris.Wrap(err, "drafts show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(draft)
	},
}

// -- drafts approve --

var draftsApproveCmd = &cobra.Command{
	Use:   "approve <draft-id>",
	Short: "Approve a draft and materialize it into canonical rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		id, err := parseDraftID(args[0])
		if err != nil {
			return err
		}

		if isRole, _ := cmd.Flags().GetBool("role"); isRole {
			if err := env.Approval.ApproveRoleDraft(ctx, id); err != nil {
				return eris.Wrap(err, "approve role draft")
			}
			fmt.Printf("Role draft %d approved.\n", id)
			return nil
		}

		res, err := env.Approval.ApproveProgramDraft(ctx, id)
		if err != nil {
			return eris.Wrap(err, "approve program draft")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// -- drafts dismiss --

var draftsDismissCmd = &cobra.Command{
	Use:   "dismiss <draft-id>",
	Short: "Dismiss a draft so its identity is never proposed again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		id, err := parseDraftID(args[0])
		if err != nil {
			return err
		}

		if isRole, _ := cmd.Flags().GetBool("role"); isRole {
			if err := env.Approval.DismissRoleDraft(ctx, id); err != nil {
				return eris.Wrap(err, "dismiss role draft")
			}
			fmt.Printf("Role draft %d dismissed.\n", id)
			return nil
		}

		if err := env.Approval.DismissProgramDraft(ctx, id); err != nil {
			return eris.Wrap(err, "dismiss program draft")
		}
		fmt.Printf("Program draft %d dismissed.\n", id)
		return nil
	},
}

func init() {
	draftsListCmd.Flags().Int64("firm", 0, "firm ID (required)")
	_ = draftsListCmd.MarkFlagRequired("firm")

	draftsApproveCmd.Flags().Bool("role", false, "target a role draft instead of a programme draft")
	draftsDismissCmd.Flags().Bool("role", false, "target a role draft instead of a programme draft")

	draftsCmd.AddCommand(draftsListCmd)
	draftsCmd.AddCommand(draftsShowCmd)
	draftsCmd.AddCommand(draftsApproveCmd)
	draftsCmd.AddCommand(draftsDismissCmd)
	rootCmd.AddCommand(draftsCmd)
}

func parseDraftID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, eris.Errorf("invalid draft id %q", s)
	}
	return id, nil
}

// formatDrafts writes tabular listings of pending drafts to w.
func formatDrafts(out io.Writer, programs []model.ProgramDraft, roles []model.RoleDraft) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if len(programs) > 0 {
		_, _ = fmt.Fprintln(w, "PROGRAM DRAFTS")
		_, _ = fmt.Fprintln(w, "ID\tNAME\tTYPE\tMATCHED\tCONFIDENCE\tCREATED")
		for _, d := range programs {
			matched := "-"
			if d.ExistingProgramID != nil {
				matched = strconv.FormatInt(*d.ExistingProgramID, 10)
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%s\n",
				d.ID, truncate(d.Name, 40), d.ProgramType, matched,
				d.Confidence, d.CreatedAt.Format("2006-01-02 15:04"))
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(roles) > 0 {
		_, _ = fmt.Fprintln(w, "ROLE DRAFTS")
		_, _ = fmt.Fprintln(w, "ID\tACTION\tTITLE\tURL\tCREATED")
		for _, d := range roles {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				d.ID, d.Action, truncate(d.Title, 40), truncate(d.URL, 50),
				d.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
