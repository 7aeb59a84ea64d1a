package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/rukayathamzat/Airhost2402-sub001/clients/go/airhost"
)

func newSendCmd(a *app) *cobra.Command {
	var (
		baseURL        string
		token          string
		to             string
		content        string
		conversationID string
		template       string
		language       string
		params         []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a WhatsApp message through a running server",
		Long: `Send a text (--content) or template (--template) message through the
API of a running server. The token defaults to AIRHOST_TOKEN.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("AIRHOST_TOKEN")
			}
			if (content == "") == (template == "") {
				return errors.New("exactly one of --content or --template is required")
			}

			client := airhost.NewClient(baseURL, token)
			var (
				resp *airhost.SendResponse
				err  error
			)
			if template != "" {
				resp, err = client.SendTemplate(cmd.Context(), airhost.SendTemplateRequest{
					To:             to,
					TemplateName:   template,
					Language:       language,
					ConversationID: conversationID,
					TemplateParams: params,
				})
			} else {
				resp, err = client.SendMessage(cmd.Context(), airhost.SendMessageRequest{
					To:             to,
					Content:        content,
					ConversationID: conversationID,
				})
			}
			if err != nil {
				return err
			}
			if !resp.DatabaseSaved {
				a.logger.Warn().Msg("message sent but not saved")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "server URL (default $AIRHOST_URL or http://localhost:8080)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().StringVar(&to, "to", "", "recipient phone number (required)")
	cmd.Flags().StringVar(&content, "content", "", "text message body")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation to attach the message to")
	cmd.Flags().StringVar(&template, "template", "", "template name")
	cmd.Flags().StringVar(&language, "language", "", "template language code")
	cmd.Flags().StringSliceVar(&params, "param", nil, "template body parameter (repeatable)")
	cmd.MarkFlagRequired("to")
	return cmd
}
