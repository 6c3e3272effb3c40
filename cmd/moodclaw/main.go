package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stellarlinkco/moodclaw/internal/bus"
	"github.com/stellarlinkco/moodclaw/internal/config"
	"github.com/stellarlinkco/moodclaw/internal/conversation"
	"github.com/stellarlinkco/moodclaw/internal/fileutil"
	"github.com/stellarlinkco/moodclaw/internal/gateway"
	"github.com/stellarlinkco/moodclaw/internal/generate"
	"github.com/stellarlinkco/moodclaw/internal/logging"
	"github.com/stellarlinkco/moodclaw/internal/personality"
)

const chatChannel = "cli"

// ChatOptions for running the local chat with custom dependencies
type ChatOptions struct {
	GeneratorFactory gateway.GeneratorFactory
	Message          string
	Name             string
	Stdin            io.Reader
	Stdout           io.Writer
	Stderr           io.Writer
}

var rootCmd = &cobra.Command{
	Use:          "moodclaw",
	Short:        "moodclaw - a chat bot whose mood follows how you treat it",
	SilenceUsage: true,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the bot from the terminal (single message or REPL)",
	RunE:  runChat,
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the gateway (channels + decay schedule + metrics)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config, persona and personality tables",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show moodclaw status",
	RunE:  runStatus,
}

var traitsCmd = &cobra.Command{
	Use:   "traits",
	Short: "Inspect or change per-user personality traits",
}

var traitsShowCmd = &cobra.Command{
	Use:   "show <user>",
	Short: "Show a user's trait vector",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraitsShow,
}

var traitsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users with a trait record",
	Args:  cobra.NoArgs,
	RunE:  runTraitsList,
}

var traitsResetCmd = &cobra.Command{
	Use:   "reset <user>",
	Short: "Reset a user's traits to defaults",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraitsReset,
}

var traitsSetCmd = &cobra.Command{
	Use:   "set <user> <trait> <value>",
	Short: "Set one trait for a user (0-100)",
	Args:  cobra.ExactArgs(3),
	RunE:  runTraitsSet,
}

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Manage users who only get canned replies",
}

var ignoreAddCmd = &cobra.Command{
	Use:   "add <user>...",
	Short: "Ignore users",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIgnoreAdd,
}

var ignoreRemoveCmd = &cobra.Command{
	Use:   "remove <user>...",
	Short: "Stop ignoring users",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIgnoreRemove,
}

var ignoreClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the ignore list",
	Args:  cobra.NoArgs,
	RunE:  runIgnoreClear,
}

var ignoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ignored users",
	Args:  cobra.NoArgs,
	RunE:  runIgnoreList,
}

var (
	messageFlag string
	nameFlag    string
	channelFlag string
)

func init() {
	chatCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	chatCmd.Flags().StringVarP(&nameFlag, "name", "n", "you", "Name the bot addresses you by")
	traitsCmd.PersistentFlags().StringVarP(&channelFlag, "channel", "c", "telegram", "Channel for user ids given without a channel prefix")
	ignoreCmd.PersistentFlags().StringVarP(&channelFlag, "channel", "c", "telegram", "Channel for user ids given without a channel prefix")

	traitsCmd.AddCommand(traitsShowCmd, traitsListCmd, traitsResetCmd, traitsSetCmd)
	ignoreCmd.AddCommand(ignoreAddCmd, ignoreRemoveCmd, ignoreClearCmd, ignoreListCmd)
	rootCmd.AddCommand(chatCmd, gatewayCmd, onboardCmd, statusCmd, traitsCmd, ignoreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runChat is the command handler that uses default options
func runChat(cmd *cobra.Command, args []string) error {
	return runChatWithOptions(ChatOptions{Message: messageFlag, Name: nameFlag})
}

// runChatWithOptions runs the pipeline on stdin/stdout with injectable
// dependencies for testing
func runChatWithOptions(opts ChatOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	factory := opts.GeneratorFactory
	if factory == nil {
		if err := cfg.Validate(); err != nil {
			return err
		}
		factory = generate.New
	}

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "you"
	}

	ctx := context.Background()
	st, err := gateway.OpenState(cfg, zap.NewNop(), nil)
	if err != nil {
		return err
	}
	defer st.Close()

	gen, err := factory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	pipeline, err := gateway.NewPipeline(cfg, st, gen, nil, zap.NewNop())
	if err != nil {
		return err
	}

	send := func(text string) {
		reply := pipeline.Handle(ctx, bus.InboundMessage{
			ID:      uuid.NewString(),
			Channel: chatChannel,
			Sender:  bus.Author{ID: "local", Name: name},
			ChatID:  "local",
			Content: text,
		})
		if reply.Err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", reply.Err)
		}
		if reply.Text != "" {
			fmt.Fprintln(stdout, reply.Text)
		}
	}

	// Single message mode
	if strings.TrimSpace(opts.Message) != "" {
		send(opts.Message)
		return nil
	}

	// REPL mode
	fmt.Fprintln(stdout, "moodclaw chat (type 'exit' to quit)")
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		send(input)
	}
	return scanner.Err()
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gw, err := gateway.NewWithOptions(cfg, gateway.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ws := cfg.Agent.Workspace
	if err := os.MkdirAll(cfg.PersonaDirPath(), 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	tables, err := personality.DefaultTables().Marshal()
	if err != nil {
		return fmt.Errorf("render personality tables: %w", err)
	}
	writeIfNotExists(out, cfg.PersonaPath(), defaultPersonaMD)
	if p := cfg.TablesPath(); p != "" {
		writeIfNotExists(out, p, string(tables))
	}

	fmt.Fprintf(out, "Workspace ready: %s\n", ws)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to set your API key and owner id\n", cfgPath)
	fmt.Fprintln(out, "  2. Or set MOODCLAW_API_KEY / GEMINI_API_KEY environment variable")
	fmt.Fprintf(out, "  3. Edit %s to shape the bot's character\n", cfg.PersonaPath())
	fmt.Fprintln(out, "  4. Run 'moodclaw chat -m \"Hello\"' to test")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Workspace: %s\n", cfg.Agent.Workspace)
	fmt.Fprintf(out, "Model: %s\n", cfg.Agent.Model)
	fmt.Fprintf(out, "Provider: %s\n", providerDisplay(cfg.Provider.Type))
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Fprintf(out, "API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Fprintln(out, "API Key: set")
	} else {
		fmt.Fprintln(out, "API Key: not set")
	}
	fmt.Fprintf(out, "Owner: %s\n", valueOr(cfg.Agent.OwnerID, "not set"))
	fmt.Fprintf(out, "Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Fprintf(out, "WebUI: enabled=%v\n", cfg.Channels.WebUI.Enabled)
	fmt.Fprintf(out, "Storage: %s\n", cfg.Storage.Backend)

	if strings.TrimSpace(cfg.Agent.Persona) != "" {
		fmt.Fprintln(out, "Persona: inline")
	} else if _, err := os.Stat(cfg.PersonaPath()); err != nil {
		fmt.Fprintln(out, "Persona: not found (run 'moodclaw onboard')")
	} else {
		fmt.Fprintf(out, "Persona: %s\n", cfg.PersonaPath())
	}

	st, err := gateway.OpenState(cfg, zap.NewNop(), nil)
	if err != nil {
		fmt.Fprintf(out, "State: error (%v)\n", err)
		return nil
	}
	defer st.Close()
	fmt.Fprintf(out, "Users with traits: %d\n", len(st.Traits.Users()))
	fmt.Fprintf(out, "Users with history: %d\n", len(st.History.Users()))
	fmt.Fprintf(out, "Ignored users: %d\n", len(st.Ignore.List()))

	return nil
}

// withOperator loads config and state for an operator command.
func withOperator(fn func(op conversation.Operator, st *gateway.State) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := gateway.OpenState(cfg, zap.NewNop(), nil)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st.Operator(), st)
}

func userArg(id string) string {
	return conversation.UserKey(channelFlag, id)
}

func runTraitsShow(cmd *cobra.Command, args []string) error {
	return withOperator(func(op conversation.Operator, _ *gateway.State) error {
		fmt.Fprintln(cmd.OutOrStdout(), op.ShowTraits(userArg(args[0])))
		return nil
	})
}

func runTraitsList(cmd *cobra.Command, args []string) error {
	return withOperator(func(op conversation.Operator, st *gateway.State) error {
		users := st.Traits.Users()
		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No trait records yet.")
			return nil
		}
		for _, id := range users {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, conversation.FormatTraits(st.Traits.Vector(id)))
		}
		return nil
	})
}

func runTraitsReset(cmd *cobra.Command, args []string) error {
	return withOperator(func(op conversation.Operator, _ *gateway.State) error {
		msg, err := op.ResetTraits(userArg(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	})
}

func runTraitsSet(cmd *cobra.Command, args []string) error {
	return withOperator(func(op conversation.Operator, _ *gateway.State) error {
		msg, err := op.SetTrait(userArg(args[0]), args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	})
}

func runIgnoreAdd(cmd *cobra.Command, args []string) error {
	return withOperator(func(op conversation.Operator, _ *gateway.State) error {
		for _, id := range args {
			msg, err := op.IgnoreUser(userArg(id))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
		}
		return nil
	})
}

func runIgnoreRemove(cmd *cobra.Command, args []string) error {
	return withOperator(func(op conversation.Operator, _ *gateway.State) error {
		for _, id := range args {
			msg, err := op.UnignoreUser(userArg(id))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
		}
		return nil
	})
}

func runIgnoreClear(cmd *cobra.Command, args []string) error {
	return withOperator(func(op conversation.Operator, _ *gateway.State) error {
		msg, err := op.ClearIgnored()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	})
}

func runIgnoreList(cmd *cobra.Command, args []string) error {
	return withOperator(func(op conversation.Operator, _ *gateway.State) error {
		fmt.Fprintln(cmd.OutOrStdout(), op.ListIgnored())
		return nil
	})
}

func providerDisplay(t string) string {
	if t == "" {
		return config.DefaultProvider + " (default)"
	}
	return t
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func writeIfNotExists(out io.Writer, path, content string) {
	created, err := fileutil.WriteIfNotExists(path, content)
	if err != nil {
		fmt.Fprintf(out, "  Failed: %s (%v)\n", path, err)
		return
	}
	if created {
		fmt.Fprintf(out, "  Created: %s\n", path)
	}
}

const defaultPersonaMD = `You are Claw, a chat bot with a real personality.

You hang out in group chats and talk to people like a friend would: short replies,
casual language, the occasional joke. You have opinions and you share them.

You remember how each person treats you. Be nicer to people who are nice to you,
and don't be afraid to get a little cold or snarky with people who are rude.

Never say you are an AI model, never break character and never write more than a
few sentences at a time.
`
