package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"nmt-api/internal/models"
)

var defaultSmokeSentences = []string{
	"Hello, how are you?",
	"I love learning new languages.",
	"The weather is beautiful today.",
	"What time is it?",
	"Thank you for your help.",
}

func newSmokeCmd() *cobra.Command {
	var baseURL string
	var prefix string
	var numBeams int
	var maxLength int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "smoke [sentences...]",
		Short: "Send sample sentences to a running server",
		Long: `Post each sentence to the translate endpoint of a running server and print the result.
Without arguments a fixed set of English sample sentences is used. Exits non-zero if any
request fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sentences := args
			if len(sentences) == 0 {
				sentences = defaultSmokeSentences
			}

			client := resty.New().
				SetBaseURL(strings.TrimRight(baseURL, "/")).
				SetTimeout(timeout).
				SetHeader("Accept", "application/json")

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Testing Neural Machine Translation API...")
			fmt.Fprintf(out, "Make sure the API is running on %s\n", baseURL)
			fmt.Fprintln(out, strings.Repeat("=", 60))

			failed := 0
			for _, sentence := range sentences {
				var result models.TranslationResponse
				var apiErr models.ErrorResponse

				resp, err := client.R().
					SetContext(cmd.Context()).
					SetBody(map[string]any{
						"text":       sentence,
						"num_beams":  numBeams,
						"max_length": maxLength,
					}).
					SetResult(&result).
					SetError(&apiErr).
					Post(prefix + "/translate")
				if err != nil {
					failed++
					fmt.Fprintf(out, "API request failed: %v\n", err)
					continue
				}
				if resp.IsError() {
					failed++
					fmt.Fprintf(out, "API request failed: %s: %s\n", resp.Status(), apiErr.Message)
					continue
				}

				fmt.Fprintf(out, "Original: %s\n", result.OriginalText)
				fmt.Fprintf(out, "Translation: %s\n", result.TranslatedText)
				fmt.Fprintf(out, "Beams: %d\n", result.NumBeams)
				fmt.Fprintln(out, strings.Repeat("-", 50))
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d smoke requests failed", failed, len(sentences))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8000", "Base URL of the running server")
	cmd.Flags().StringVar(&prefix, "prefix", "/api/v1", "API prefix")
	cmd.Flags().IntVar(&numBeams, "beams", 4, "Beam count to request")
	cmd.Flags().IntVar(&maxLength, "max-length", 128, "Maximum output length to request")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Per-request timeout")
	return cmd
}
