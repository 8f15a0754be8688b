package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/pkg/logger"
)

var (
	reconcileReference string
	reconcilePending   bool
	reconcileLimit     int
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Verify payment transactions against the gateway and credit their invoices",
	Long: `Runs the same reconciliation the verify endpoint uses, as an operator.
Pass --reference to reconcile one transaction or --pending to sweep the oldest unsettled ones.`,
	RunE: runReconcile,
}

// operator acts with admin rights so ownership checks pass for every invoice.
var operator = &internal.Principal{
	Email:       "reconcile@cli",
	Permissions: []string{internal.PermissionAdmin},
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	if (reconcileReference == "") == !reconcilePending {
		return errors.New("exactly one of --reference or --pending is required")
	}

	c, err := buildCore(configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.With(ctx, "source", "cli")

	var result interface{}
	if reconcilePending {
		result, err = c.Reconciler.ReconcilePending(ctx, reconcileLimit, operator)
	} else {
		result, err = c.Reconciler.Reconcile(ctx, reconcileReference, operator)
	}
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return fmt.Errorf("%s: %s", appErr.Code, appErr.GetDetailedMessage())
		}
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileReference, "reference", "", "transaction reference to reconcile")
	reconcileCmd.Flags().BoolVar(&reconcilePending, "pending", false, "reconcile the oldest unsettled transactions")
	reconcileCmd.Flags().IntVar(&reconcileLimit, "limit", 50, "maximum transactions to check with --pending")
}
