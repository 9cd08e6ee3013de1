package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ikkim/cpportal-backend/pkg/cpclient"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	server  string
	token   string
	timeout time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "cpctl",
		Short: "CP portal operator CLI",
		Long: `cpctl drives the CP portal gateway: log in, inspect and save a provider's material,
work the admin review queue, and export it to XLSX.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", envOr("CPCTL_SERVER", "http://localhost:8080/api/v1"), "Gateway base URL")
	cmd.PersistentFlags().StringVarP(&opts.token, "token", "t", os.Getenv("CPCTL_TOKEN"), "Access token (see `cpctl login`)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	cmd.AddCommand(
		newLoginCmd(opts),
		newStatusesCmd(opts),
		newMaterialCmd(opts),
		newQueueCmd(opts),
		newApproveCmd(opts),
		newRejectCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

func (o *globalOptions) client() (*cpclient.Client, error) {
	return cpclient.NewClient(cpclient.Config{BaseURL: o.server, Token: o.token, Timeout: o.timeout})
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid material id %q", arg)
	}
	return uint(id), nil
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print an access token",
		Example: `  export CPCTL_TOKEN=$(cpctl login --email admin@example.com --password ...)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			res, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Tokens.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("CPCTL_PASSWORD"), "Account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newStatusesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "statuses",
		Short: "List material statuses with their badges",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			statuses, err := c.Statuses(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, statuses)
		},
	}
}

func newMaterialCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "material",
		Short: "Inspect or save the logged-in provider's material",
	}
	cmd.AddCommand(newMaterialGetCmd(opts), newMaterialSaveCmd(opts))
	return cmd
}

func newMaterialGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show my material",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			m, err := c.MyMaterial(cmd.Context())
			if err != nil {
				return err
			}
			if m == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no material saved yet")
				return nil
			}
			return printJSON(cmd, m)
		},
	}
}

func newMaterialSaveCmd(opts *globalOptions) *cobra.Command {
	var (
		req    cpclient.SaveRequest
		submit bool
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save my material as a draft, or submit it for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			current, err := c.MyMaterial(cmd.Context())
			if err != nil {
				return err
			}
			var id uint
			if current != nil {
				id = current.MaterialID
			}

			req.Mode = "save_draft"
			if submit {
				req.Mode = "submit_review"
			}
			m, err := c.SaveMaterial(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}
	cmd.Flags().StringVar(&req.CpName, "name", "", "CP name")
	cmd.Flags().StringVar(&req.CpIcon, "icon", "", "Icon image URL")
	cmd.Flags().StringVar(&req.BusinessLicense, "license", "", "Business license number")
	cmd.Flags().StringVar(&req.Website, "website", "", "Website URL")
	cmd.Flags().StringArrayVar(&req.VerificationImages, "image", nil, "Verification image URL (repeatable, order kept)")
	cmd.Flags().BoolVar(&submit, "submit", false, "Submit for review instead of saving a draft")
	return cmd
}

func newQueueCmd(opts *globalOptions) *cobra.Command {
	var (
		status         string
		page, pageSize int
	)
	cmd := &cobra.Command{
		Use:   "queue [material-id]",
		Short: "List the review queue, or show one material with its history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				detail, err := c.GetMaterial(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd, detail)
			}

			res, err := c.ListMaterials(cmd.Context(), status, page, pageSize)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&status, "status", "reviewing", "Status filter (name or number, empty for all)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Page size (max 100)")
	return cmd
}

func newApproveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <material-id>",
		Short: "Approve a material under review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			m, err := c.Approve(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}
}

func newRejectCmd(opts *globalOptions) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "reject <material-id>",
		Short: "Reject a material under review with a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			m, err := c.Reject(cmd.Context(), id, comment)
			if err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "Reason shown to the provider")
	_ = cmd.MarkFlagRequired("comment")
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var status, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the review queue as XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("cp-materials-%s.xlsx", time.Now().Format("20060102-150405"))
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := c.Export(cmd.Context(), status, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Status filter (name or number, empty for all)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default cp-materials-<time>.xlsx)")
	return cmd
}
