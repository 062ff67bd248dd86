package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewSubscriptionCmd creates the subscription command
func NewSubscriptionCmd(deps *Deps) *cobra.Command {
	var format string
	var refresh, upgrade, billing bool

	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Show your plan, upgrade, or manage billing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if upgrade && billing {
				return fmt.Errorf("--upgrade and --billing cannot be combined")
			}
			if err := validateFormat(format); err != nil {
				return err
			}
			switch {
			case upgrade:
				return runBillingLink(cmd.Context(), deps, true)
			case billing:
				return runBillingLink(cmd.Context(), deps, false)
			default:
				return runSubscription(cmd.Context(), deps, format, refresh)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatText, "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Resync with the payment provider before showing")
	cmd.Flags().BoolVar(&upgrade, "upgrade", false, "Open checkout to upgrade to Pro")
	cmd.Flags().BoolVar(&billing, "billing", false, "Open the billing portal")

	return cmd
}

func runSubscription(ctx context.Context, deps *Deps, format string, refresh bool) error {
	if _, err := requireSession(deps); err != nil {
		return err
	}

	sub, err := deps.Client.Subscription(ctx, refresh)
	if err != nil {
		return describeError("failed to load subscription", err)
	}

	return render(deps.Out, format, sub, func(w io.Writer) error {
		if sub.PlanType == "pro" {
			fmt.Fprintln(w, "Plan:     Browser Manager Pro")
			fmt.Fprintln(w, "          Unlimited profiles and premium features")
		} else {
			fmt.Fprintln(w, "Plan:     Free Plan")
			fmt.Fprintf(w, "          %d/%d profiles used\n", sub.ProfileCount, sub.ProfileLimit)
		}
		fmt.Fprintf(w, "Status:   %s\n", sub.Status)
		if sub.CurrentPeriodEnd != "" {
			fmt.Fprintf(w, "Renews:   %s\n", sub.CurrentPeriodEnd)
		}
		return nil
	})
}

// runBillingLink asks the backend for a checkout or portal URL and opens it
func runBillingLink(ctx context.Context, deps *Deps, upgrade bool) error {
	if _, err := requireSession(deps); err != nil {
		return err
	}

	var (
		url string
		err error
	)
	if upgrade {
		url, err = deps.Client.SubscriptionCheckout(ctx)
	} else {
		url, err = deps.Client.SubscriptionPortal(ctx)
	}
	if err != nil {
		return describeError("failed to start billing session", err)
	}

	fmt.Fprintf(deps.Out, "Opening %s\n", url)
	if err := deps.Launcher.Open(url); err != nil {
		return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, url)
	}
	return nil
}
