package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/architeacher/u2f-registrations/internal/adapters/wire"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/spf13/cobra"
)

type connectFunc func() (ports.DeviceRepository, error)

var errMissingOwner = errors.New("--owner is required")

// newListCommand lists active registrations, optionally for one owner.
func newListCommand(opts *globalOptions, connect connectFunc) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active registrations",
		Long: `Display the active registrations known to the resource.
Without --owner every owner is listed. Expired registrations are hidden.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := connect()
			if err != nil {
				return err
			}

			var regs []*model.Registration
			if owner == "" {
				regs, err = repo.ListRegisteredDevices(cmd.Context())
			} else {
				regs, err = repo.GetRegisteredDevices(cmd.Context(), owner)
			}

			if err != nil {
				return fmt.Errorf("failed to list registrations: %w", err)
			}

			return printRegistrations(cmd.OutOrStdout(), opts.output, regs)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "only list this owner's registrations")

	return cmd
}

func newShowCommand(opts *globalOptions, connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one active registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseRegistrationID(args[0])
			if err != nil {
				return err
			}

			repo, err := connect()
			if err != nil {
				return err
			}

			reg, err := repo.GetRegisteredDevice(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to fetch registration %s: %w", id, err)
			}

			return printRegistrations(cmd.OutOrStdout(), opts.output, []*model.Registration{reg})
		},
	}
}

func newRegisterCommand(opts *globalOptions, connect connectFunc) *cobra.Command {
	var (
		owner   string
		key     string
		label   string
		variant string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a security key for an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := model.ParseVariant(variant)
			if err != nil {
				return fmt.Errorf("%w: %q", err, variant)
			}

			reg := model.NewRegistration(owner, key).WithLabel(label).WithVariant(parsed)
			if err := reg.Validate(); err != nil {
				return err
			}

			repo, err := connect()
			if err != nil {
				return err
			}

			stored, err := repo.RegisterDevice(cmd.Context(), reg)
			if err != nil {
				return fmt.Errorf("failed to register key: %w", err)
			}

			return printRegistrations(cmd.OutOrStdout(), opts.output, []*model.Registration{stored})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner of the key (required)")
	cmd.Flags().StringVar(&key, "key", "", "encoded public key material (required)")
	cmd.Flags().StringVar(&label, "label", "", "human readable key name")
	cmd.Flags().StringVar(&variant, "type", model.VariantU2F.String(), "registration type")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func newActivatedCommand(connect connectFunc) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "activated",
		Short: "Report whether an owner has an active registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := connect()
			if err != nil {
				return err
			}

			activated, err := repo.IsActivated(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("failed to check activation: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), activated)

			return err
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner to check (required)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

// newRemoveCommand removes one registration by id or every registration of --owner.
func newRemoveCommand(connect connectFunc) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove a registration, or all registrations of an owner",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (owner == "") {
				return errors.New("pass exactly one of <id> or --owner")
			}

			repo, err := connect()
			if err != nil {
				return err
			}

			if owner != "" {
				if err := repo.RemoveAll(cmd.Context(), owner); err != nil {
					return fmt.Errorf("failed to remove registrations of %s: %w", owner, err)
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed all registrations of %s\n", owner)

				return err
			}

			id, err := model.ParseRegistrationID(args[0])
			if err != nil {
				return err
			}

			if err := repo.RemoveDevice(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to remove registration %s: %w", id, err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed registration %s\n", id)

			return err
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "remove every registration of this owner")

	return cmd
}

func newPurgeCommand(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete registrations older than --expire-after",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := connect()
			if err != nil {
				return err
			}

			removed, err := repo.PurgeExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to purge expired registrations: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired registrations\n", removed)

			return err
		},
	}
}

func newClearCommand(connect connectFunc) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every registration of every owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return errors.New("refusing to clear the resource without --yes")
			}

			repo, err := connect()
			if err != nil {
				return err
			}

			if err := repo.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear registrations: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "cleared all registrations")

			return err
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm removal of every registration")

	return cmd
}

func printRegistrations(out io.Writer, format string, regs []*model.Registration) error {
	if format == outputJSON {
		data, err := wire.EncodeEnvelope(regs)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "%s\n", data)

		return err
	}

	if len(regs) == 0 {
		_, err := fmt.Fprintln(out, "No registrations found.")

		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOWNER\tTYPE\tLABEL\tCREATED")

	for _, reg := range regs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			reg.ID, reg.Owner, reg.Variant, reg.Label, reg.CreatedAt.UTC().Format(time.RFC3339))
	}

	return w.Flush()
}
