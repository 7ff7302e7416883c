package main

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/kylejryan/insurance-ops/internal/apiclient"
	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type claimView struct {
	Claim   models.Claim       `json:"claim"`
	Actions []lifecycle.Action `json:"actions"`
}

func (c *cli) claimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "claim",
		Aliases: []string{"claims"},
		Short:   "File, submit and adjudicate claims",
	}
	cmd.AddCommand(
		c.claimListCmd(),
		c.claimGetCmd(),
		c.claimCreateCmd(),
		c.claimSubmitCmd(),
		c.claimAdjudicateCmd(),
		c.claimAttachCmd(),
		c.claimDocsCmd(),
		c.claimDownloadCmd(),
	)
	return cmd
}

func (c *cli) claimListCmd() *cobra.Command {
	var q apiclient.ClaimQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := c.console.ListClaims(cmd.Context(), q)
			if err != nil {
				return err
			}
			return c.print(items)
		},
	}
	cmd.Flags().StringVar(&q.Status, "status", "", "DRAFT, SUBMITTED, APPROVED, DENIED or ALL")
	cmd.Flags().StringVar(&q.PolicyID, "policy", "", "only claims against this policy")
	return cmd
}

func (c *cli) claimGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get CLAIM_ID",
		Short: "Show a claim and the actions available on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.printClaim(cmd, args[0])
		},
	}
}

func (c *cli) printClaim(cmd *cobra.Command, id string) error {
	cl, err := c.console.GetClaim(cmd.Context(), id)
	if err != nil {
		return err
	}
	actions, err := c.console.Available(cmd.Context(), lifecycle.EntityClaim, string(cl.Status), cl.UserID)
	if err != nil {
		return err
	}
	return c.print(claimView{Claim: cl, Actions: actions})
}

func (c *cli) claimCreateCmd() *cobra.Command {
	var policyID, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a DRAFT claim against a policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.console.CreateClaim(cmd.Context(), policyID, description)
			if err != nil {
				return err
			}
			return c.print(cl)
		},
	}
	cmd.Flags().StringVar(&policyID, "policy", "", "policy id")
	cmd.Flags().StringVarP(&description, "description", "d", "", "what happened")
	_ = cmd.MarkFlagRequired("policy")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func (c *cli) claimSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit CLAIM_ID",
		Short: "Submit a DRAFT claim for adjudication",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.console.SubmitClaim(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.printClaim(cmd, args[0])
		},
	}
}

func (c *cli) claimAdjudicateCmd() *cobra.Command {
	var decision, payout string
	cmd := &cobra.Command{
		Use:   "adjudicate CLAIM_ID",
		Short: "Approve or deny a submitted claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var amount *decimal.Decimal
			if payout != "" {
				d, err := parseDecimal("payout", payout)
				if err != nil {
					return err
				}
				amount = &d
			}
			if _, err := c.console.AdjudicateClaim(cmd.Context(), args[0], models.ClaimStatus(decision), amount); err != nil {
				return err
			}
			return c.printClaim(cmd, args[0])
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "", "APPROVED or DENIED")
	cmd.Flags().StringVar(&payout, "payout", "", "payout amount")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func (c *cli) claimAttachCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "attach CLAIM_ID FILE",
		Short: "Upload a file as claim evidence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[1])
			if err != nil {
				return apperr.Wrap(apperr.KindValidation, "claim.attach", "cannot read "+args[1], err)
			}
			name := filepath.Base(args[1])
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(name))
			}
			t, err := c.console.AttachEvidence(cmd.Context(), args[0], name, contentType, body)
			if err != nil {
				return err
			}
			return c.print(t)
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "media type (default from the file extension)")
	return cmd
}

func (c *cli) claimDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs CLAIM_ID",
		Short: "List a claim's evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := c.console.ListDocuments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(docs)
		},
	}
}

func (c *cli) claimDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download KEY",
		Short: "Print a short-lived download link for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := c.console.DownloadLink(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(map[string]string{"url": url})
		},
	}
}
