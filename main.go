package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	timeago "github.com/caarlos0/timea.go"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/parley/internal/cache"
	"github.com/charmbracelet/parley/internal/proto"
	"github.com/charmbracelet/x/editor"
	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
)

// Build vars.
var (
	//nolint: gochecknoglobals
	Version   = ""
	CommitSHA = ""
)

func versionString() string {
	version := Version
	if version == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
			version = info.Main.Version
		} else {
			version = "unknown (built from source)"
		}
	}
	version = "parley version " + version
	if len(CommitSHA) >= convIDShort {
		version += " (" + CommitSHA[:convIDShort] + ")"
	}
	return version
}

func init() {
	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		_ = usageFunc(cmd)
	})
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})
}

var (
	config      Config
	db          *convoDB
	transcripts *cache.Transcripts

	rootCmd = &cobra.Command{
		Use:           "parley",
		Short:         "Chat with LLMs from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.Prefix = removeWhitespace(strings.Join(args, " "))

			if config.Verbose {
				log.SetLevel(log.DebugLevel)
			}

			opts := []tea.ProgramOption{}

			if !isInputTTY() || config.Raw {
				opts = append(opts, tea.WithInput(nil))
			}
			if isOutputTTY() && !config.Raw {
				opts = append(opts, tea.WithOutput(os.Stderr))
			} else {
				opts = append(opts, tea.WithoutRenderer())
			}

			if os.Getenv("VIMRUNTIME") != "" {
				config.Quiet = true
			}

			if isNoArgs() && isInputTTY() {
				return usageFunc(cmd)
			}

			switch {
			case config.Version:
				fmt.Println(versionString())
				return nil
			case config.Settings:
				return editSettings()
			case config.ResetSettings:
				return resetSettings()
			case config.Dirs:
				fmt.Printf("Configuration: %s\n", filepath.Dir(config.SettingsPath))
				//nolint: mnd
				fmt.Printf("%*sCache: %s\n", 8, " ", config.CachePath)
				return nil
			case config.ShowHelp:
				return usageFunc(cmd)
			case config.List:
				return listConversations()
			case config.ListModels:
				return listModels(cmd.Context())
			case len(config.Delete) > 0:
				return deleteConversations()
			case config.DeleteOlderThan > 0:
				return deleteConversationsOlderThan()
			case config.Export != "":
				return exportCmd()
			case config.Import != "":
				return importCmd()
			}

			parley := newParley(stderrRenderer(), &config, db, transcripts)
			p := tea.NewProgram(parley, opts...)
			m, err := p.Run()
			if err != nil {
				return parleyError{err, "Couldn't start Bubble Tea program."}
			}

			parley = m.(*Parley)
			if parley.Error != nil {
				if parley.interrupted {
					// the last frame of the program cleared the partial answer.
					fmt.Print(parley.finalOutput(isOutputTTY()))
					if serr := saveConversation(parley); serr != nil {
						log.Error("could not save the partial conversation", "err", serr)
					}
				}
				return *parley.Error
			}

			fmt.Print(parley.finalOutput(isOutputTTY()))

			if config.Show != "" || config.ShowLast {
				return nil
			}

			if config.Copy {
				if err := clipboard.WriteAll(parley.Output); err != nil {
					return parleyError{err, "Could not copy the response to the clipboard."}
				}
				if !config.Quiet {
					fmt.Fprintln(os.Stderr, "\nCopied to clipboard.")
				}
			}

			return saveConversation(parley)
		},
	}
)

func initFlags() {
	flags := rootCmd.Flags()
	flags.StringVarP(&config.Model, "model", "m", config.Model, stdoutStyles().FlagDesc.Render(help["model"]))
	flags.StringVarP(&config.API, "api", "a", config.API, stdoutStyles().FlagDesc.Render(help["api"]))
	flags.StringVarP(&config.HTTPProxy, "http-proxy", "x", config.HTTPProxy, stdoutStyles().FlagDesc.Render(help["http-proxy"]))
	flags.BoolVarP(&config.Format, "format", "f", config.Format, stdoutStyles().FlagDesc.Render(help["format"]))
	flags.StringVarP(&config.SystemPrompt, "system-prompt", "R", config.SystemPrompt, stdoutStyles().FlagDesc.Render(help["system-prompt"]))
	flags.BoolVarP(&config.Raw, "raw", "r", config.Raw, stdoutStyles().FlagDesc.Render(help["raw"]))
	flags.BoolVarP(&config.Quiet, "quiet", "q", config.Quiet, stdoutStyles().FlagDesc.Render(help["quiet"]))
	flags.BoolVarP(&config.ShowHelp, "help", "h", false, stdoutStyles().FlagDesc.Render(help["help"]))
	flags.BoolVarP(&config.Version, "version", "v", false, stdoutStyles().FlagDesc.Render(help["version"]))
	flags.BoolVarP(&config.Copy, "copy", "y", false, stdoutStyles().FlagDesc.Render(help["copy"]))
	flags.BoolVarP(&config.ContinueLast, "continue-last", "C", false, stdoutStyles().FlagDesc.Render(help["continue-last"]))
	flags.StringVarP(&config.Continue, "continue", "c", "", stdoutStyles().FlagDesc.Render(help["continue"]))
	flags.StringVarP(&config.Title, "title", "t", config.Title, stdoutStyles().FlagDesc.Render(help["title"]))
	flags.BoolVarP(&config.List, "list", "l", config.List, stdoutStyles().FlagDesc.Render(help["list"]))
	flags.BoolVar(&config.ListModels, "list-models", false, stdoutStyles().FlagDesc.Render(help["list-models"]))
	flags.StringArrayVarP(&config.Delete, "delete", "d", config.Delete, stdoutStyles().FlagDesc.Render(help["delete"]))
	flags.Var(newDurationFlag(config.DeleteOlderThan, &config.DeleteOlderThan), "delete-older-than", stdoutStyles().FlagDesc.Render(help["delete-older-than"]))
	flags.StringVarP(&config.Show, "show", "s", config.Show, stdoutStyles().FlagDesc.Render(help["show"]))
	flags.BoolVarP(&config.ShowLast, "show-last", "S", false, stdoutStyles().FlagDesc.Render(help["show-last"]))
	flags.StringVar(&config.Export, "export", "", stdoutStyles().FlagDesc.Render(help["export"]))
	flags.StringVar(&config.Import, "import", "", stdoutStyles().FlagDesc.Render(help["import"]))
	flags.BoolVar(&config.NoCache, "no-cache", config.NoCache, stdoutStyles().FlagDesc.Render(help["no-cache"]))
	flags.Int64Var(&config.MaxTokens, "max-tokens", config.MaxTokens, stdoutStyles().FlagDesc.Render(help["max-tokens"]))
	flags.Float64Var(&config.Temperature, "temp", config.Temperature, stdoutStyles().FlagDesc.Render(help["temp"]))
	flags.StringArrayVar(&config.Stop, "stop", config.Stop, stdoutStyles().FlagDesc.Render(help["stop"]))
	flags.Float64Var(&config.TopP, "topp", config.TopP, stdoutStyles().FlagDesc.Render(help["topp"]))
	flags.StringVar(&config.User, "user", config.User, stdoutStyles().FlagDesc.Render(help["user"]))
	flags.BoolVar(&config.NoLimit, "no-limit", config.NoLimit, stdoutStyles().FlagDesc.Render(help["no-limit"]))
	flags.Int64Var(&config.MaxInputChars, "max-input-chars", config.MaxInputChars, stdoutStyles().FlagDesc.Render(help["max-input-chars"]))
	flags.StringVar(&config.Theme, "theme", config.Theme, stdoutStyles().FlagDesc.Render(help["theme"]))
	flags.BoolVar(&config.Verbose, "verbose", config.Verbose, stdoutStyles().FlagDesc.Render(help["verbose"]))
	flags.BoolVar(&config.Settings, "settings", false, stdoutStyles().FlagDesc.Render(help["settings"]))
	flags.BoolVar(&config.Dirs, "dirs", false, stdoutStyles().FlagDesc.Render(help["dirs"]))
	flags.BoolVar(&config.ResetSettings, "reset-settings", config.ResetSettings, stdoutStyles().FlagDesc.Render(help["reset-settings"]))
	flags.SortFlags = false

	for _, name := range []string{"show", "delete", "continue"} {
		_ = rootCmd.RegisterFlagCompletionFunc(name, func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			results, _ := db.Completions(toComplete)
			return results, cobra.ShellCompDirectiveDefault
		})
	}
	_ = rootCmd.RegisterFlagCompletionFunc("model", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		var results []string
		for _, api := range config.APIs {
			if config.API != "" && api.Name != config.API {
				continue
			}
			for name, mod := range api.Models {
				results = append(results, name+"\t"+strings.Join(append([]string{api.Name}, mod.Aliases...), " "))
			}
		}
		slices.Sort(results)
		return results, cobra.ShellCompDirectiveDefault
	})
	_ = rootCmd.RegisterFlagCompletionFunc("api", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		results := make([]string, 0, len(config.APIs))
		for _, api := range config.APIs {
			results = append(results, api.Name)
		}
		return results, cobra.ShellCompDirectiveDefault
	})

	if config.FormatText == "" {
		config.FormatText = defaultMarkdownFormatText
	}

	rootCmd.MarkFlagsMutuallyExclusive(
		"settings",
		"show",
		"show-last",
		"delete",
		"delete-older-than",
		"list",
		"list-models",
		"continue",
		"continue-last",
		"reset-settings",
		"export",
		"import",
	)
}

func main() {
	var err error
	config, err = ensureConfig()
	if err != nil {
		handleError(parleyError{err, "Could not load your configuration file."})
		// if user is editing the settings, only print out the error, but do
		// not exit.
		if !slices.Contains(os.Args, "--settings") {
			os.Exit(1)
		}
	}

	log.SetLevel(log.WarnLevel)
	log.SetReportTimestamp(false)

	// XXX: this must come after creating the config.
	initFlags()

	if !isCompletionCmd(os.Args) && !isManCmd(os.Args) {
		db, err = openDB(filepath.Join(config.CachePath, "parley.db"))
		if err != nil {
			handleError(parleyError{err, "Could not open database."})
			os.Exit(1)
		}
		transcripts, err = cache.NewTranscripts(config.CachePath)
		if err != nil {
			handleError(parleyError{err, "Could not setup cache."})
			os.Exit(1)
		}
	}

	if isCompletionCmd(os.Args) {
		// XXX: since parley doesn't have any sub-commands, Cobra won't create
		// the default `completion` command. Forcefully create the completion
		// related sub-commands by adding a fake command when completions are
		// being used.
		rootCmd.AddCommand(&cobra.Command{
			Use:    "____fake_command_to_enable_completions",
			Hidden: true,
		})
		rootCmd.InitDefaultCompletionCmd()

		// completions need the database for conversation ids.
		db, err = openDB(filepath.Join(config.CachePath, "parley.db"))
		if err != nil {
			os.Exit(1)
		}
	}

	if isManCmd(os.Args) {
		rootCmd.AddCommand(&cobra.Command{
			Use:                   "man",
			Short:                 "Generates manpages",
			SilenceUsage:          true,
			DisableFlagsInUseLine: true,
			Hidden:                true,
			Args:                  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				manPage, err := mcobra.NewManPage(1, rootCmd)
				if err != nil {
					//nolint:wrapcheck
					return err
				}
				_, err = fmt.Fprint(os.Stdout, manPage.Build(roff.NewDocument()))
				//nolint:wrapcheck
				return err
			},
		})
	}

	if err := rootCmd.Execute(); err != nil {
		handleError(err)
		closeDB()
		os.Exit(1)
	}
	closeDB()
}

func closeDB() {
	if db != nil {
		_ = db.Close()
	}
}

func usageFunc(cmd *cobra.Command) error {
	fmt.Printf(
		"Usage:\n  %s\n\n",
		useLine(),
	)
	fmt.Println("Options:")
	cmd.Flags().VisitAll(func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand == "" {
			fmt.Printf(
				"  %-44s %s\n",
				stdoutStyles().Flag.Render("--"+f.Name),
				stdoutStyles().FlagDesc.Render(f.Usage),
			)
		} else {
			fmt.Printf(
				"  %s%s %-40s %s\n",
				stdoutStyles().Flag.Render("-"+f.Shorthand),
				stdoutStyles().FlagComma,
				stdoutStyles().Flag.Render("--"+f.Name),
				stdoutStyles().FlagDesc.Render(f.Usage),
			)
		}
	})
	desc, example := randomExample()
	fmt.Printf(
		"\nExample:\n  %s\n  %s\n",
		stdoutStyles().Comment.Render("# "+desc),
		cheapHighlighting(stdoutStyles(), example),
	)
	return nil
}

func useLine() string {
	appName := filepath.Base(os.Args[0])

	if stdoutRenderer().ColorProfile() == termenv.TrueColor {
		appName = makeGradientText(stdoutStyles().AppName, appName)
	}

	return fmt.Sprintf(
		"%s %s",
		appName,
		stdoutStyles().CliArgs.Render("[OPTIONS] [PREFIX TERM]"),
	)
}

func handleError(err error) {
	// exhaust stdin
	if !isInputTTY() {
		_, _ = io.ReadAll(os.Stdin)
	}

	format := "\n%s\n\n"

	var args []any
	var ferr flagParseError
	var perr parleyError
	if errors.As(err, &ferr) {
		format += "%s\n\n"
		args = []any{
			fmt.Sprintf(
				"Check out %s %s",
				stderrStyles().InlineCode.Render("parley -h"),
				stderrStyles().Comment.Render("for help."),
			),
			fmt.Sprintf(
				ferr.ReasonFormat(),
				stderrStyles().InlineCode.Render(ferr.Flag()),
			),
		}
	} else if errors.As(err, &perr) {
		args = []any{
			stderrStyles().ErrPadding.Render(stderrStyles().ErrorHeader.String(), perr.reason),
		}

		// Skip the error details if the user simply canceled out of huh.
		if !errors.Is(perr.err, huh.ErrUserAborted) {
			format += "%s\n\n"
			args = append(args, stderrStyles().ErrPadding.Render(stderrStyles().ErrorDetails.Render(err.Error())))
		}
	} else {
		args = []any{
			stderrStyles().ErrPadding.Render(stderrStyles().ErrorDetails.Render(err.Error())),
		}
	}

	fmt.Fprintf(os.Stderr, format, args...)
}

func isNoArgs() bool {
	return config.Prefix == "" &&
		config.Show == "" &&
		!config.ShowLast &&
		len(config.Delete) == 0 &&
		config.DeleteOlderThan == 0 &&
		!config.ShowHelp &&
		!config.List &&
		!config.ListModels &&
		!config.Dirs &&
		!config.Settings &&
		!config.ResetSettings &&
		!config.Version &&
		config.Export == "" &&
		config.Import == ""
}

func editSettings() error {
	c, err := editor.Cmd("parley", config.SettingsPath)
	if err != nil {
		return parleyError{
			err:    err,
			reason: "Could not edit your settings file.",
		}
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return parleyError{err, fmt.Sprintf(
			"Missing %s.",
			stderrStyles().InlineCode.Render("$EDITOR"),
		)}
	}

	if !config.Quiet {
		fmt.Fprintln(os.Stderr, "Wrote config file to:", config.SettingsPath)
	}
	return nil
}

func resetSettings() error {
	_, err := os.Stat(config.SettingsPath)
	if err != nil {
		return parleyError{err, "Couldn't read config file."}
	}
	inputFile, err := os.Open(config.SettingsPath)
	if err != nil {
		return parleyError{err, "Couldn't open config file."}
	}
	defer inputFile.Close() //nolint:errcheck
	outputFile, err := os.Create(config.SettingsPath + ".bak")
	if err != nil {
		return parleyError{err, "Couldn't backup config file."}
	}
	defer outputFile.Close() //nolint:errcheck
	_, err = io.Copy(outputFile, inputFile)
	if err != nil {
		return parleyError{err, "Couldn't write config file."}
	}
	// The copy was successful, so now delete the original file
	err = os.Remove(config.SettingsPath)
	if err != nil {
		return parleyError{err, "Couldn't remove config file."}
	}
	err = writeConfigFile(config.SettingsPath)
	if err != nil {
		return parleyError{err, "Couldn't write new config file."}
	}
	if !config.Quiet {
		fmt.Fprintln(os.Stderr, "\nSettings restored to defaults!")
		fmt.Fprintf(os.Stderr,
			"\n  %s %s\n\n",
			stderrStyles().Comment.Render("Your old settings have been saved to:"),
			stderrStyles().Link.Render(config.SettingsPath+".bak"),
		)
	}
	return nil
}

func deleteConversationsOlderThan() error {
	conversations, err := db.ListOlderThan(config.DeleteOlderThan)
	if err != nil {
		return parleyError{err, "Couldn't find conversation to delete."}
	}

	if len(conversations) == 0 {
		if !config.Quiet {
			fmt.Fprintln(os.Stderr, "No conversations found.")
			return nil
		}
		return nil
	}

	if !config.Quiet {
		printList(conversations)

		if !isOutputTTY() || !isInputTTY() {
			fmt.Fprintln(os.Stderr)
			return newUserErrorf(
				"To delete the conversations above, run: %s",
				strings.Join(append(os.Args, "--quiet"), " "),
			)
		}
		var confirm bool
		if err := huh.Run(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete conversations older than %s?", config.DeleteOlderThan)).
				Description(fmt.Sprintf("This will delete all the %d conversations listed above.", len(conversations))).
				Value(&confirm),
		); err != nil {
			return parleyError{err, "Couldn't delete old conversations."}
		}
		if !confirm {
			return newUserErrorf("Aborted by user")
		}
	}

	for _, c := range conversations {
		if err := deleteConversation(c.ID); err != nil {
			return err
		}

		if !config.Quiet {
			fmt.Fprintln(os.Stderr, "Conversation deleted:", c.ID[:convIDShort])
		}
	}

	return nil
}

func deleteConversations() error {
	var convos []*Conversation
	for _, del := range config.Delete {
		convo, err := db.Find(del)
		if err != nil {
			return parleyError{err, "Couldn't find conversation to delete."}
		}
		convos = append(convos, convo)
	}

	if !config.Quiet && isInputTTY() && isOutputTTY() {
		titles := make([]string, 0, len(convos))
		for _, c := range convos {
			titles = append(titles, c.Title)
		}
		var confirm bool
		if err := huh.Run(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %d conversation(s)?", len(convos))).
				Description(strings.Join(titles, "\n")).
				Value(&confirm),
		); err != nil {
			return parleyError{err, "Couldn't delete conversations."}
		}
		if !confirm {
			return newUserErrorf("Aborted by user")
		}
	}

	for _, convo := range convos {
		if err := deleteConversation(convo.ID); err != nil {
			return err
		}
		if !config.Quiet {
			fmt.Fprintln(os.Stderr, "Conversation deleted:", convo.ID[:convIDShort])
		}
	}
	return nil
}

func deleteConversation(id string) error {
	if err := db.Delete(id); err != nil {
		return parleyError{err, "Couldn't delete conversation."}
	}
	if err := transcripts.Delete(id); err != nil {
		return parleyError{err, "Couldn't delete conversation."}
	}
	return nil
}

func listConversations() error {
	conversations, err := db.List()
	if err != nil {
		return parleyError{err, "Couldn't list saves."}
	}

	if len(conversations) == 0 {
		fmt.Fprintln(os.Stderr, "No conversations found.")
		return nil
	}

	printList(conversations)
	return nil
}

func printList(conversations []Conversation) {
	for _, conversation := range conversations {
		if isOutputTTY() {
			fmt.Fprintf(
				os.Stdout,
				"%s%s\t%s\t%s\n",
				stdoutStyles().Bullet,
				stdoutStyles().SHA1.Render(conversation.ID[:convIDShort]),
				conversation.Title,
				stdoutStyles().Timeago.Render(timeago.Of(conversation.UpdatedAt())),
			)
			continue
		}
		fmt.Fprintf(
			os.Stdout,
			"%s\t%s\n",
			conversation.ID[:convIDShort],
			conversation.Title,
		)
	}
}

func listModels(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second) //nolint:mnd
	defer cancel()

	listing, err := fetchModels(ctx, &config)
	if err != nil {
		return parleyError{err, "Couldn't list models."}
	}
	printModels(os.Stdout, stdoutStyles(), &config, listing)
	return nil
}

func exportCmd() error {
	w, err := openExport(config.Export)
	if err != nil {
		return parleyError{err, "Couldn't export conversations."}
	}
	n, err := exportConversations(w, db, transcripts)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return parleyError{err, "Couldn't export conversations."}
	}
	if !config.Quiet {
		fmt.Fprintf(os.Stderr, "Exported %d conversation(s).\n", n)
	}
	return nil
}

func importCmd() error {
	r, err := openImport(config.Import)
	if err != nil {
		return parleyError{err, "Couldn't import conversations."}
	}
	defer r.Close() //nolint:errcheck
	n, err := importConversations(r, db, transcripts)
	if err != nil {
		return parleyError{err, fmt.Sprintf("Couldn't import conversations, %d imported.", n)}
	}
	if !config.Quiet {
		fmt.Fprintf(os.Stderr, "Imported %d conversation(s).\n", n)
	}
	return nil
}

func saveConversation(parley *Parley) error {
	if config.NoCache {
		if !config.Quiet {
			fmt.Fprintf(
				os.Stderr,
				"\nConversation was not saved because %s or %s is set.\n",
				stderrStyles().InlineCode.Render("--no-cache"),
				stderrStyles().InlineCode.Render("PARLEY_NO_CACHE"),
			)
		}
		return nil
	}

	// if message is a sha1, use the last prompt instead.
	id := config.cacheWriteToID
	title := strings.TrimSpace(config.cacheWriteToTitle)
	if convIDReg.MatchString(title) || title == "" {
		title = sessionTitle(proto.Conversation(parley.messages).LastPrompt())
		if convo, err := db.Find(id); err == nil {
			title = convo.Title
		}
	}
	if title == "" {
		title = id[:convIDShort]
	}

	errReason := fmt.Sprintf(
		"There was a problem writing %s to the cache. Use %s / %s to disable it.",
		config.cacheWriteToID,
		stderrStyles().InlineCode.Render("--no-cache"),
		stderrStyles().InlineCode.Render("PARLEY_NO_CACHE"),
	)
	if err := transcripts.Write(id, &parley.messages); err != nil {
		return parleyError{err, errReason}
	}
	if err := db.Save(id, title, config.API, config.Model); err != nil {
		_ = transcripts.Delete(id) // remove leftovers
		return parleyError{err, errReason}
	}

	if !config.Quiet {
		fmt.Fprintln(
			os.Stderr,
			"\nConversation saved:",
			stderrStyles().InlineCode.Render(config.cacheWriteToID[:convIDShort]),
			stderrStyles().Comment.Render(title),
		)
	}
	return nil
}

func isManCmd(args []string) bool {
	if len(args) == 2 {
		return args[1] == "man"
	}
	if len(args) == 3 && args[1] == "man" {
		return args[2] == "-h" || args[2] == "--help"
	}
	return false
}

func isCompletionCmd(args []string) bool {
	if len(args) <= 1 {
		return false
	}
	if args[1] == "__complete" {
		return true
	}
	if args[1] != "completion" {
		return false
	}
	if len(args) == 3 {
		_, ok := map[string]any{
			"bash":       nil,
			"fish":       nil,
			"zsh":        nil,
			"powershell": nil,
			"-h":         nil,
			"--help":     nil,
			"help":       nil,
		}[args[2]]
		return ok
	}
	if len(args) == 4 {
		_, ok := map[string]any{
			"-h":     nil,
			"--help": nil,
		}[args[3]]
		return ok
	}
	return false
}
