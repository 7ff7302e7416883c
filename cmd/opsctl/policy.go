package main

import (
	"context"

	"github.com/kylejryan/insurance-ops/internal/apiclient"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/spf13/cobra"
)

// policyView is a policy together with the actions the session may take on it.
type policyView struct {
	Policy  models.Policy      `json:"policy"`
	Actions []lifecycle.Action `json:"actions"`
}

func (c *cli) policyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "policy",
		Aliases: []string{"policies"},
		Short:   "List and transition policies",
	}
	cmd.AddCommand(
		c.policyListCmd(),
		c.policyGetCmd(),
		c.policyCreateCmd(),
		c.policyRenewCmd(),
		c.policySuspendCmd(),
		c.policyActionCmd("reinstate", "Reinstate a suspended policy", func(ctx context.Context, id string) error {
			_, err := c.console.ReinstatePolicy(ctx, id)
			return err
		}),
		c.policyActionCmd("cancel", "Cancel a policy", func(ctx context.Context, id string) error {
			_, err := c.console.CancelPolicy(ctx, id)
			return err
		}),
	)
	return cmd
}

func (c *cli) policyListCmd() *cobra.Command {
	var q apiclient.PolicyQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := c.console.ListPolicies(cmd.Context(), q)
			if err != nil {
				return err
			}
			return c.print(items)
		},
	}
	cmd.Flags().StringVar(&q.Status, "status", "", "ACTIVE, SUSPENDED, CANCELLED, EXPIRED or ALL")
	cmd.Flags().StringVar(&q.UserID, "user", "", "owner user id (administrators only)")
	return cmd
}

func (c *cli) policyGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get POLICY_ID",
		Short: "Show a policy and the actions available on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.printPolicy(cmd, args[0])
		},
	}
}

func (c *cli) printPolicy(cmd *cobra.Command, id string) error {
	p, err := c.console.GetPolicy(cmd.Context(), id)
	if err != nil {
		return err
	}
	actions, err := c.console.Available(cmd.Context(), lifecycle.EntityPolicy, string(p.Status), p.UserID)
	if err != nil {
		return err
	}
	return c.print(policyView{Policy: p, Actions: actions})
}

func (c *cli) policyCreateCmd() *cobra.Command {
	var (
		in                lifecycle.CreatePolicyInput
		coverage, premium string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an ACTIVE policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if in.CoverageAmount, err = parseDecimal("coverage", coverage); err != nil {
				return err
			}
			if in.Premium, err = parseDecimal("premium", premium); err != nil {
				return err
			}
			p, err := c.console.CreatePolicy(cmd.Context(), in)
			if err != nil {
				return err
			}
			return c.print(p)
		},
	}
	cmd.Flags().StringVar(&coverage, "coverage", "", "coverage amount")
	cmd.Flags().StringVar(&premium, "premium", "", "premium amount")
	cmd.Flags().IntVar(&in.TermMonths, "term", 12, "term in months")
	cmd.Flags().StringVar(&in.UserID, "user", "", "owner user id (administrators only; default self)")
	cmd.Flags().StringVar(&in.QuoteID, "quote-id", "", "quote the premium came from")
	_ = cmd.MarkFlagRequired("coverage")
	_ = cmd.MarkFlagRequired("premium")
	return cmd
}

func (c *cli) policyRenewCmd() *cobra.Command {
	var months int
	cmd := &cobra.Command{
		Use:   "renew POLICY_ID",
		Short: "Extend a policy's term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.console.RenewPolicy(cmd.Context(), args[0], months); err != nil {
				return err
			}
			return c.printPolicy(cmd, args[0])
		},
	}
	cmd.Flags().IntVar(&months, "months", 12, "months to add to the term")
	return cmd
}

func (c *cli) policySuspendCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "suspend POLICY_ID",
		Short: "Suspend an ACTIVE policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.console.SuspendPolicy(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			return c.printPolicy(cmd, args[0])
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the policy is suspended")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (c *cli) policyActionCmd(use, short string, run func(ctx context.Context, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " POLICY_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.printPolicy(cmd, args[0])
		},
	}
}
