package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"discharge-assistant/internal/app"
	"discharge-assistant/internal/config"
	"discharge-assistant/internal/core"
	"discharge-assistant/internal/db"
	"discharge-assistant/internal/directory"
	"discharge-assistant/internal/llm"
	"discharge-assistant/internal/logging"
	"discharge-assistant/internal/retriever"
)

const chatLongDesc string = `Chat with the post-discharge care assistant in the terminal.

Type your name to look up your discharge record, or ask a clinical question.
Type "exit" or press Ctrl-D to leave.

Examples:
  chat
  chat patients
  chat ingest --dir docs/`

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chat",
		Short:        "Terminal chat with the discharge assistant",
		Long:         chatLongDesc,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.WatchPatients(ctx); err != nil {
					a.Logger.Warn("patients file watch disabled", zap.Error(err))
				}
				return runChat(ctx, a.Orchestrator, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	cmd.AddCommand(newPatientsCmd(), newIngestCmd(), newImportCmd())
	return cmd
}

func newPatientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List the patients in the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				fmt.Fprintln(cmd.OutOrStdout(), directory.FormatList(a.Directory.ListAll(ctx)))
				return nil
			})
		},
	}
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk reference documents into the Chroma collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.DocsDir
			}
			if dir == "" {
				return fmt.Errorf("no documents directory: pass --dir or set DOCS_DIR")
			}
			logger := logging.New(cfg.LogLevel)
			defer logger.Sync()

			embedder := llm.NewOpenAIClient(llm.Config{
				APIKey:         cfg.OpenAIAPIKey,
				BaseURL:        cfg.OpenAIBaseURL,
				ChatModel:      cfg.OpenAIChatModel,
				EmbeddingModel: cfg.OpenAIEmbeddingModel,
			})
			store, err := retriever.NewChroma(retriever.ChromaConfig{URL: cfg.ChromaURL, CollectionName: cfg.ChromaCollection}, embedder, logger)
			if err != nil {
				return err
			}
			n, err := retriever.IngestDir(cmd.Context(), store, dir, retriever.IngestOptions{})
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", dir, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d passages from %s\n", n, dir)
			return nil
		},
	}
	cmd.Flags().String("dir", "", "directory of .txt and .md reference documents (default DOCS_DIR)")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [patients.json]",
		Short: "Copy a patients file into the Postgres directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL must be set")
			}
			path := cfg.PatientsFile
			if len(args) == 1 {
				path = args[0]
			}
			records, err := directory.FileSource{Path: path}.Load(cmd.Context())
			if err != nil {
				return err
			}
			conn, err := db.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(cmd.Context(), conn); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			repo := db.NewRepository(conn)
			for _, p := range records {
				if err := repo.InsertPatient(cmd.Context(), p); err != nil {
					return fmt.Errorf("inserting %s: %w", p.DisplayName(), err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d patients from %s\n", len(records), path)
			return nil
		},
	}
}

// withApp builds the assistant from the environment.  Logs go to the audit
// log file only, so they do not interleave with the conversation.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg := config.Load()
	logger := zap.NewNop()
	if cfg.AuditLogFile != "" {
		if f, err := logging.OpenLogFile(cfg.AuditLogFile); err == nil {
			defer f.Close()
			logger = logging.NewFileOnly(cfg.LogLevel, f)
		}
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// runChat prints the greeting and answers each input line until EOF, "exit"
// or ctx is done.
func runChat(ctx context.Context, orch *core.Orchestrator, in io.Reader, out io.Writer) error {
	s := core.NewSession()
	for _, turn := range s.Transcript() {
		fmt.Fprintf(out, "Assistant: %s\n", turn.Content)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}
		reply, err := orch.HandleTurn(ctx, s, line)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Assistant: %s\n", reply.Text)
		if len(reply.Citations) > 0 {
			fmt.Fprintf(out, "Sources: %s\n", strings.Join(reply.Citations, ", "))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
