package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/store"
)

// errNotFound makes check-property exit non-zero without a usage dump.
var errNotFound = errors.New("not found")

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		Long: `Apply the embedded schema migrations to DATABASE_URL.

The SQLite store creates its schema on open and needs no migration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			if err := store.RunMigrations(cmd.Context(), cfg.DatabaseURL); err != nil {
				return err
			}
			a.logger.Info().Msg("migrations completed")
			return nil
		},
	}
}

// seedTemplates are the customer support templates every new deployment
// starts with.
var seedTemplates = []models.Template{
	{
		Namespace: "customer_support",
		Name:      "welcome",
		Language:  "fr",
		Content:   "Bonjour ! Je suis {{1}}, votre hôte pour {{2}}. Comment puis-je vous aider ?",
	},
	{
		Namespace: "customer_support",
		Name:      "booking_confirmed",
		Language:  "fr",
		Content:   "Votre réservation pour {{1}} est confirmée. Voici les détails : {{2}}",
	},
	{
		Namespace: "customer_support",
		Name:      "conversation_expired",
		Language:  "fr",
		Content:   "La conversation a expiré. Pour continuer, veuillez envoyer un nouveau message.",
	},
}

func newSeedCmd(a *app) *cobra.Command {
	var hostID, managerEmail string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a test property, templates and a sample conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := uuid.Parse(hostID)
			if err != nil {
				return fmt.Errorf("--host must be a UUID: %w", err)
			}

			ctx := cmd.Context()
			db, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			property := &models.Property{
				HostID:         host,
				Name:           "Appartement Test",
				Address:        "1 rue de la Paix, Paris",
				Description:    "Deux pièces lumineux proche du métro.",
				AIInstructions: "Répondre avec chaleur et concision.",
				Language:       "fr",
				Amenities:      json.RawMessage(`["WiFi","Cuisine équipée","Lave-linge"]`),
				Rules:          json.RawMessage(`["Non-fumeur","Pas de fêtes"]`),
				FAQ:            json.RawMessage(`{"Code WiFi":"airhost2024","Check-in":"À partir de 15h"}`),
				ManagerEmail:   managerEmail,
			}
			if err := db.CreateProperty(ctx, property); err != nil {
				return fmt.Errorf("create property: %w", err)
			}

			for _, tpl := range seedTemplates {
				tpl := tpl
				if err := db.CreateTemplate(ctx, &tpl); err != nil {
					return fmt.Errorf("create template %s: %w", tpl.Name, err)
				}
			}

			const first = "Bonjour, je suis intéressé par votre appartement"
			lastAt := time.Now().Add(-time.Hour)
			conv := &models.Conversation{
				PropertyID:    property.ID,
				GuestName:     "Invité Test",
				GuestPhone:    "+33612345678",
				GuestNumber:   "33612345678",
				LastMessage:   first,
				LastMessageAt: &lastAt,
				UnreadCount:   1,
			}
			if err := db.CreateConversation(ctx, conv); err != nil {
				return fmt.Errorf("create conversation: %w", err)
			}
			convID := conv.ID
			if err := db.CreateMessage(ctx, &models.Message{
				ConversationID: &convID,
				Content:        first,
				Direction:      models.DirectionInbound,
				Type:           models.MessageTypeText,
				Status:         models.StatusReceived,
			}); err != nil {
				return fmt.Errorf("create message: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "property:     %s\nconversation: %s\ntemplates:    %d\n",
				property.ID, conv.ID, len(seedTemplates))
			return nil
		},
	}
	cmd.Flags().StringVar(&hostID, "host", "", "host user UUID owning the test property (required)")
	cmd.Flags().StringVar(&managerEmail, "manager-email", "", "manager email for emergency alerts")
	cmd.MarkFlagRequired("host")
	return cmd
}

func newCheckPropertyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-property <id>",
		Short: "Print a property, failing when it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid property ID: %w", err)
			}

			ctx := cmd.Context()
			db, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			p, err := db.GetProperty(ctx, id)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("property %s: %w", id, errNotFound)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}
