package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shandysiswandi/jbcast/internal/app"
	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/mailing/usecase"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var (
	ownerID int64

	uploadTitle  string
	uploadIngest bool

	accountHost     string
	accountPort     int
	accountUsername string
	accountPassword string
	accountTLS      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the broker consumers and the send worker pool",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		application := app.New(app.Options{ConfigPath: configPath, Serve: true})
		wait := application.Start()
		<-wait
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		application.Stop(ctx)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:       "migrate up|down",
	Short:     "Apply or roll back the database schema",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(_ *cobra.Command, args []string) error {
		return app.Migrate(configPath, args[0] == "up")
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Create or update the owner's outbound SMTP account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		password := accountPassword
		if password == "" {
			password = os.Getenv("JBCAST_SMTP_PASSWORD")
		}

		return runCommand(cmd, false, func(ctx context.Context, uc *usecase.Usecase) error {
			if err := uc.SaveAccount(ctx, usecase.SaveAccountInput{
				OwnerID:  ownerID,
				Host:     accountHost,
				Port:     accountPort,
				Username: accountUsername,
				Password: password,
				UseTLS:   accountTLS,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "outbound account saved for owner %d\n", ownerID)
			return nil
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Store a .csv or .xlsx recipient sheet as a new batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return goerror.NewBusinessWrap(err, "cannot open recipient sheet", goerror.CodeNotFound)
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			return err
		}

		title := uploadTitle
		if title == "" {
			title = filepath.Base(args[0])
		}

		return runCommand(cmd, false, func(ctx context.Context, uc *usecase.Usecase) error {
			batch, err := uc.RegisterBatch(ctx, usecase.RegisterBatchInput{
				OwnerID:  ownerID,
				Title:    title,
				Filename: filepath.Base(args[0]),
				Size:     info.Size(),
				Content:  f,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %d registered\n", batch.ID)

			if !uploadIngest {
				return nil
			}
			out, err := uc.Ingest(ctx, usecase.IngestInput{BatchID: batch.ID})
			if err != nil {
				return err
			}
			printIngest(cmd, out)
			return nil
		})
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <batch-id>",
	Short: "Create the recipients of an uploaded batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, err := parseID(args[0])
		if err != nil {
			return err
		}

		return runCommand(cmd, false, func(ctx context.Context, uc *usecase.Usecase) error {
			out, err := uc.Ingest(ctx, usecase.IngestInput{BatchID: batchID})
			if err != nil {
				return err
			}
			printIngest(cmd, out)
			return nil
		})
	},
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <batch-id>",
	Short: "Send every recipient of a batch that has not been sent yet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, err := parseID(args[0])
		if err != nil {
			return err
		}

		// Waits for the pool to drain before returning.
		return runCommand(cmd, true, func(ctx context.Context, uc *usecase.Usecase) error {
			out, err := uc.DispatchBatch(ctx, usecase.DispatchBatchInput{BatchID: batchID, OwnerID: ownerID})
			if err != nil {
				return err
			}
			if out.NothingPending {
				fmt.Fprintf(cmd.OutOrStdout(), "batch %d has nothing pending\n", out.BatchID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %d: %d recipients queued\n", out.BatchID, out.Queued)
			return nil
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <recipient-id>",
	Short: "Send a single recipient now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recipientID, err := parseID(args[0])
		if err != nil {
			return err
		}

		return runCommand(cmd, false, func(ctx context.Context, uc *usecase.Usecase) error {
			out, err := uc.DispatchOne(ctx, usecase.DispatchOneInput{RecipientID: recipientID})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recipient %d: %s", out.RecipientID, out.Outcome)
			if out.Reason != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", out.Reason)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <batch-id>",
	Short: "Show delivery state of a batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, err := parseID(args[0])
		if err != nil {
			return err
		}

		return runCommand(cmd, false, func(ctx context.Context, uc *usecase.Usecase) error {
			out, err := uc.BatchStatus(ctx, usecase.BatchStatusInput{BatchID: batchID, OwnerID: ownerID})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "batch\t%d\t%s\n", out.Batch.ID, out.Batch.Title)
			fmt.Fprintf(w, "total\t%d\tpending %d\tsent %d\tfailed %d\n",
				out.Counts.Total, out.Counts.Pending, out.Counts.Sent, out.Counts.Failed)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "ID\tEMAIL\tSTATE\tATTEMPTS\tLAST ERROR")
			for _, r := range out.Recipients {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", r.ID, r.Email, r.State, r.Attempts, r.LastError)
			}
			return w.Flush()
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the uploaded batches of an owner, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCommand(cmd, false, func(ctx context.Context, uc *usecase.Usecase) error {
			batches, err := uc.ListBatches(ctx, usecase.ListBatchesInput{OwnerID: ownerID})
			if err != nil {
				return err
			}
			return printBatches(cmd.OutOrStdout(), batches)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <batch-id>",
	Short: "Delete a batch, its recipients and its source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, err := parseID(args[0])
		if err != nil {
			return err
		}

		return runCommand(cmd, false, func(ctx context.Context, uc *usecase.Usecase) error {
			if err := uc.DeleteBatch(ctx, usecase.DeleteBatchInput{BatchID: batchID, OwnerID: ownerID}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %d deleted\n", batchID)
			return nil
		})
	},
}

func init() {
	accountCmd.Flags().Int64Var(&ownerID, "owner", 0, "owner id")
	accountCmd.Flags().StringVar(&accountHost, "host", "", "SMTP host")
	accountCmd.Flags().IntVar(&accountPort, "port", 587, "SMTP port")
	accountCmd.Flags().StringVar(&accountUsername, "username", "", "SMTP username, also the From address")
	accountCmd.Flags().StringVar(&accountPassword, "password", "", "SMTP password (default from JBCAST_SMTP_PASSWORD)")
	accountCmd.Flags().BoolVar(&accountTLS, "tls", true, "require STARTTLS")
	_ = accountCmd.MarkFlagRequired("owner")
	_ = accountCmd.MarkFlagRequired("host")
	_ = accountCmd.MarkFlagRequired("username")

	uploadCmd.Flags().Int64Var(&ownerID, "owner", 0, "owner id")
	uploadCmd.Flags().StringVar(&uploadTitle, "title", "", "batch title (default file name)")
	uploadCmd.Flags().BoolVar(&uploadIngest, "ingest", false, "ingest recipients right after upload")
	_ = uploadCmd.MarkFlagRequired("owner")

	dispatchCmd.Flags().Int64Var(&ownerID, "owner", 0, "only dispatch when the batch belongs to this owner")
	statusCmd.Flags().Int64Var(&ownerID, "owner", 0, "only show the batch when it belongs to this owner")

	listCmd.Flags().Int64Var(&ownerID, "owner", 0, "owner id")
	_ = listCmd.MarkFlagRequired("owner")

	deleteCmd.Flags().Int64Var(&ownerID, "owner", 0, "owner id")
	_ = deleteCmd.MarkFlagRequired("owner")
}

// runCommand wires the app without the broker, runs fn and shuts down.
// With drain set, Stop waits for every queued send; an interrupt cancels the wait.
func runCommand(cmd *cobra.Command, drain bool, fn func(ctx context.Context, uc *usecase.Usecase) error) error {
	application := app.New(app.Options{ConfigPath: configPath})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := fn(ctx, application.Mailing())

	stopCtx, cancel := ctx, context.CancelFunc(func() {})
	if !drain {
		stopCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	}
	defer cancel()
	application.Stop(stopCtx)

	return runErr
}

func printBatches(out io.Writer, batches []entity.Batch) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUPLOADED\tINGESTED")
	for _, b := range batches {
		ingested := "-"
		if b.IngestedAt != nil {
			ingested = b.IngestedAt.Format(time.DateTime)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", b.ID, b.Title, b.CreatedAt.Format(time.DateTime), ingested)
	}
	return w.Flush()
}

func printIngest(cmd *cobra.Command, out *usecase.IngestOutput) {
	if out.NothingToProcess {
		fmt.Fprintf(cmd.OutOrStdout(), "batch %d: nothing to process\n", out.BatchID)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "batch %d: %d recipients created\n", out.BatchID, out.Created)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, goerror.NewInvalidInput(nil, "id", "must be a positive integer")
	}
	return id, nil
}
