package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/whatsapp"
)

func newWhatsAppCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whatsapp",
		Short: "Inspect the stored WhatsApp Cloud API credentials",
	}
	cmd.AddCommand(newWhatsAppTestCmd(a), newWhatsAppCleanupCmd(a))
	return cmd
}

func newWhatsAppTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check the active credentials against the Graph API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			wc, err := db.LatestWhatsAppConfig(ctx)
			if err != nil {
				return err
			}
			if wc == nil {
				return errors.New("no WhatsApp configuration stored")
			}

			cfg := a.config()
			client := whatsapp.NewClient(cfg.WhatsAppGraphURL, cfg.WhatsAppAPIVersion, nil)
			result, err := client.PhoneNumberInfo(ctx, whatsapp.Credentials{
				PhoneNumberID: wc.PhoneNumberID,
				Token:         wc.Token,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "phone_number_id: %s\ntoken:           %s\nstatus:          %d\n",
				wc.PhoneNumberID, wc.MaskedToken(), result.StatusCode)
			fmt.Fprintf(out, "%s\n", result.Body)
			if !result.OK() {
				if result.Error != nil {
					return result.Error
				}
				return fmt.Errorf("graph API answered %d", result.StatusCode)
			}
			return nil
		},
	}
}

func newWhatsAppCleanupCmd(a *app) *cobra.Command {
	var keep string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete every stored configuration except one phone number",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			configs, err := db.ListWhatsAppConfigs(ctx)
			if err != nil {
				return err
			}

			var stale []uuid.UUID
			kept := false
			for _, c := range configs {
				if c.PhoneNumberID == keep {
					kept = true
					continue
				}
				stale = append(stale, c.ID)
			}
			if !kept {
				return fmt.Errorf("phone number %s: %w", keep, errNotFound)
			}

			deleted, err := db.DeleteWhatsAppConfigs(ctx, stale)
			if err != nil {
				return err
			}
			a.logger.Info().Int64("deleted", deleted).Str("kept", keep).Msg("WhatsApp configurations cleaned up")
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d configuration(s), kept %s\n", deleted, keep)
			return nil
		},
	}
	cmd.Flags().StringVar(&keep, "keep", "", "phone_number_id to keep (required)")
	cmd.MarkFlagRequired("keep")
	return cmd
}
