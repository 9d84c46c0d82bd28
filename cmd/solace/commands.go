package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/kalambet/solace/internal/api"
	"github.com/kalambet/solace/internal/config"
	"github.com/kalambet/solace/internal/intent"
	"github.com/kalambet/solace/internal/persona"
	"github.com/kalambet/solace/internal/storage"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Send an utterance to the running server and print the reply",
	Long: `Send an utterance to the running server and print the reply.

Examples:
  solace ask "I can't remember where I am"
  solace ask --lang fr "je suis perdu"
  solace ask --session kitchen-1 "remind me to take my pills"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := askRequest(cmd, args)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/respond", req)
		if err != nil {
			return err
		}

		var out api.RespondResponse
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		printReply(os.Stdout, out)
		return nil
	},
}

func askRequest(cmd *cobra.Command, args []string) (api.RespondRequest, error) {
	language, _ := cmd.Flags().GetString("lang")
	session, _ := cmd.Flags().GetString("session")
	care, _ := cmd.Flags().GetBool("care")
	model, _ := cmd.Flags().GetString("model")
	personality, _ := cmd.Flags().GetString("personality")
	memory, _ := cmd.Flags().GetStringSlice("memory")

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return api.RespondRequest{}, fmt.Errorf("text is required")
	}
	return api.RespondRequest{
		Text:            text,
		Language:        language,
		SessionID:       session,
		CareMode:        care,
		Memory:          memory,
		Personality:     personality,
		ModelPreference: model,
	}, nil
}

func printReply(w io.Writer, r api.RespondResponse) {
	if r.Reply == "" {
		printWarning("no provider replied (last tried: %s)", r.Source)
		return
	}
	fmt.Fprintf(w, "%s %s\n", r.SourceIcon, r.Reply)
	fmt.Fprintf(w, "%s\n", colorize(colorCyan, fmt.Sprintf("source: %s  session: %s", r.Source, r.SessionID)))
}

func init() {
	askCmd.Flags().String("lang", "", "conversation language: en or fr (detected when omitted)")
	askCmd.Flags().String("session", "", "session id to continue")
	askCmd.Flags().Bool("care", false, "mark the turn as needing extra care")
	askCmd.Flags().String("model", "", "model preference: primary, secondary or openai")
	askCmd.Flags().String("personality", "", "override the persona personality")
	askCmd.Flags().StringSlice("memory", nil, "memory hints recorded with the turn")
}

// --- classify ---

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show the detected intent and emotion of an utterance (offline)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(intent.Classify(strings.Join(args, " ")))
	},
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Browse the interaction log",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		session, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/interactions?limit=%d", limit)
		if session != "" {
			path = fmt.Sprintf("/sessions/%s/interactions?limit=%d", session, limit)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var interactions []storage.Interaction
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}

		printInteractions(os.Stdout, interactions)
		return nil
	},
}

func printInteractions(w io.Writer, interactions []storage.Interaction) {
	if len(interactions) == 0 {
		fmt.Fprintln(w, "No interactions found.")
		return
	}
	for _, ix := range interactions {
		fmt.Fprintf(w, "%s  %s  %-9s  %s -> %s\n",
			colorize(colorCyan, shortID(ix.ID)),
			ix.CreatedAt.Format("2006-01-02 15:04"),
			ix.Provider,
			clip(ix.Input, 60),
			clip(ix.Output, 60),
		)
	}
}

var interactionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/interactions/"+args[0])
		if err != nil {
			return err
		}

		var interaction any
		if err := decodeJSON(resp, &interaction); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(interaction)
	},
}

func init() {
	interactionsListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	interactionsListCmd.Flags().String("session", "", "only list this session, oldest first")
	interactionsCmd.AddCommand(interactionsListCmd)
	interactionsCmd.AddCommand(interactionsShowCmd)
}

// --- reminders / memory aids ---

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Browse saved reminders",
}

var remindersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reminders, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/reminders?limit=%d", limit))
		if err != nil {
			return err
		}

		var reminders []storage.Reminder
		if err := decodeJSON(resp, &reminders); err != nil {
			return err
		}
		if len(reminders) == 0 {
			fmt.Println("No reminders saved.")
			return nil
		}
		for _, r := range reminders {
			fmt.Printf("%s  %s  %s\n", colorize(colorCyan, shortID(r.ID)), r.CreatedAt.Format("2006-01-02 15:04"), r.Text)
		}
		return nil
	},
}

var memoryAidsCmd = &cobra.Command{
	Use:   "memory-aids",
	Short: "Browse saved memory aids",
}

var memoryAidsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved memory aids, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/memory-aids?limit=%d", limit))
		if err != nil {
			return err
		}

		var aids []storage.MemoryAid
		if err := decodeJSON(resp, &aids); err != nil {
			return err
		}
		if len(aids) == 0 {
			fmt.Println("No memory aids saved.")
			return nil
		}
		for _, a := range aids {
			fmt.Printf("%s  %s = %s\n", colorize(colorCyan, shortID(a.ID)), colorize(colorBold, a.Name), a.Description)
		}
		return nil
	},
}

func init() {
	remindersListCmd.Flags().Int("limit", 50, "maximum number of reminders to list")
	remindersCmd.AddCommand(remindersListCmd)
	memoryAidsListCmd.Flags().Int("limit", 50, "maximum number of memory aids to list")
	memoryAidsCmd.AddCommand(memoryAidsListCmd)
}

// --- persona ---

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Show or update the assistant persona",
}

var personaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current persona as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/persona")
		if err != nil {
			return err
		}

		var p persona.Persona
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var personaSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a persona field (" + strings.Join(persona.Keys, ", ") + ")",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		patch, err := personaPatch(key, value)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/persona", patch)
		if err != nil {
			return err
		}

		var p persona.Persona
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, clip(value, 60))
		return nil
	},
}

// personaPatch turns a key/value pair into a typed patch. A value of the
// form @path loads the dataset context from a file.
func personaPatch(key, value string) (persona.Patch, error) {
	var p persona.Patch
	switch key {
	case persona.KeyPersonality:
		p.Personality = &value
	case persona.KeyModelPreference:
		p.ModelPreference = &value
	case persona.KeyUseDatasetContext:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return persona.Patch{}, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		p.UseDatasetContext = &b
	case persona.KeyDatasetContext:
		if path, ok := strings.CutPrefix(value, "@"); ok {
			text, err := loadDatasetFile(path)
			if err != nil {
				return persona.Patch{}, err
			}
			value = text
		}
		p.DatasetContext = &value
	default:
		return persona.Patch{}, fmt.Errorf("unknown persona key %q (valid: %s)", key, strings.Join(persona.Keys, ", "))
	}
	return p, nil
}

func init() {
	personaCmd.AddCommand(personaShowCmd)
	personaCmd.AddCommand(personaSetCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if strings.HasSuffix(key, "api_key") {
			printSuccess("Stored %s in the secret store", key)
			return nil
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- helpers ---

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
