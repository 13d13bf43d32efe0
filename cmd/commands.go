package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"followup-bot/internal/services"

	"github.com/spf13/cobra"
)

// withService opens the configured store and hands a ContactService without a
// live channel to fn. Commands using it never send messages.
func withService(fn func(ctx context.Context, svc *services.ContactService) error) error {
	cfg := loadConfig()
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, services.NewContactService(st.contacts, st.settings, nil, nil))
}

func newContactsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List contacts with their automation stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *services.ContactService) error {
				contacts, err := svc.List(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(contacts)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNOME\tTELEFONE\tESTÁGIO\tPILOTO\tNÃO LIDA")
				for _, c := range contacts {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\n",
						c.ID, c.Name, c.Phone, c.AutomationStage, c.AutoPilotEnabled, c.HasUnreadReply)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print contacts as JSON")
	return cmd
}

func newAckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ack <contact-id>",
		Short: "Mark a contact's reply as read so automation can resume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *services.ContactService) error {
				contact, err := svc.AcknowledgeReply(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resposta de %s marcada como lida\n", contact.Name)
				return nil
			})
		},
	}
}

func newAutopilotCmd() *cobra.Command {
	var contactID string
	cmd := &cobra.Command{
		Use:       "autopilot <on|off>",
		Short:     "Toggle server automation, or a single contact's autopilot with --contact",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := args[0] == "on"
			return withService(func(ctx context.Context, svc *services.ContactService) error {
				if contactID == "" {
					if _, err := svc.SetGlobalAutomation(ctx, enabled); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Automação global: %s\n", args[0])
					return nil
				}
				contact, err := svc.SetAutopilot(ctx, contactID, enabled)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Piloto automático de %s: %s\n", contact.Name, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&contactID, "contact", "", "contact id to toggle instead of the global switch")
	return cmd
}
