package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"ciphercore.app/convo/common/id"
	"ciphercore.app/convo/common/logger"
	"ciphercore.app/convo/core/config"
	"ciphercore.app/convo/internal/bootstrap"
	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/ledger"
	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/roster"
	"ciphercore.app/convo/internal/service"
	"ciphercore.app/convo/internal/store"
	"github.com/spf13/cobra"
)

var (
	runTopic         string
	runAgents        []string
	runIterations    int
	runLanguage      string
	runExpertise     string
	runOwner         string
	runPersonalities map[string]string
	transcriptsOwner string
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a discussion and stream it to the terminal",
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&runTopic, "topic", "", "discussion topic")
	runCmd.Flags().StringSliceVar(&runAgents, "agents", nil, "roster agents in speaking order (a,b,c)")
	runCmd.Flags().IntVar(&runIterations, "iterations", 5, "number of turns")
	runCmd.Flags().StringVar(&runLanguage, "language", "", "reply language (german, english, french, spanish)")
	runCmd.Flags().StringVar(&runExpertise, "expertise", "", "expertise level of the audience")
	runCmd.Flags().StringVar(&runOwner, "owner", "", "store the transcript under this owner")
	runCmd.Flags().StringToStringVar(&runPersonalities, "personality", nil, "personality overrides (agent=critical)")
	_ = runCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(runCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "agents",
		Short: "List the agent roster",
		RunE:  runAgentsCmd,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the roster file",
		RunE:  runSchema,
	})

	transcriptsCmd := &cobra.Command{
		Use:   "transcripts",
		Short: "List stored discussions",
		RunE:  runTranscripts,
	}
	transcriptsCmd.Flags().StringVar(&transcriptsOwner, "owner", "", "only runs stored under this owner")
	rootCmd.AddCommand(transcriptsCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "rate RUN_ID ITERATION AGENT up|down",
		Short: "Vote on one agent's turn",
		Args:  cobra.ExactArgs(4),
		RunE:  runRate,
	})
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		return config.Config{}, err
	}
	logger.SetupWriter(cfg, os.Stderr)
	if rosterPath != "" {
		cfg.Roster.Path = rosterPath
	}
	return cfg, nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.LLM.Enabled() {
		return fmt.Errorf("LLM_API_KEY is required and LLM_PROVIDER must be openai, anthropic or gemini")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := id.Init(3); err != nil {
		return fmt.Errorf("initializing id generator: %w", err)
	}

	transcripts, err := store.NewSQLiteTranscriptStore(ctx, cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer transcripts.Close()

	generator, err := bootstrap.GenerationClient(cfg)
	if err != nil {
		return err
	}

	orchestrator := brain.NewOrchestrator(generator, transcripts, brain.OrchestratorConfig{
		NewRunID: id.NewRunID,
	})
	conversations := service.NewConversationService(orchestrator, roster.LoadFile(ctx, cfg.Roster.Path), nil)

	req, err := startRequest()
	if err != nil {
		return err
	}

	run, err := conversations.Start(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(runTopic))
	fmt.Fprintln(out, mutedStyle.Render("run "+run.ID()))
	fmt.Fprintln(out)

	for u := range run.Updates(ctx) {
		if u.Final() {
			fmt.Fprint(out, renderSummary(runTopic, u.Chunk))
			continue
		}
		if turn := u.TurnEvent().Turn; turn != nil {
			fmt.Fprintln(out, renderTurn(*turn))
		} else {
			fmt.Fprint(out, u.Chunk)
		}
	}

	if _, ok := run.Result(); !ok {
		return fmt.Errorf("discussion interrupted after state %s", run.State())
	}
	return nil
}

func startRequest() (service.StartRunRequest, error) {
	var overrides map[string]model.Personality
	if len(runPersonalities) > 0 {
		overrides = make(map[string]model.Personality, len(runPersonalities))
		for agent, raw := range runPersonalities {
			p, err := model.ParsePersonality(raw)
			if err != nil {
				return service.StartRunRequest{}, fmt.Errorf("--personality %s: %w", agent, err)
			}
			overrides[agent] = p
		}
	}

	req := service.StartRunRequest{
		Topic:          runTopic,
		AgentNames:     runAgents,
		Personalities:  overrides,
		Iterations:     runIterations,
		Language:       model.ParseLanguage(runLanguage),
		ExpertiseLevel: runExpertise,
	}
	if runOwner != "" {
		req.OwnerID = &runOwner
	}
	return req, nil
}

func runAgentsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r := roster.LoadFile(cmd.Context(), cfg.Roster.Path)
	out := cmd.OutOrStdout()
	if r.Len() == 0 {
		fmt.Fprintln(out, warningStyle.Render("no agents configured in "+cfg.Roster.Path))
		return nil
	}
	for _, a := range r.Agents() {
		fmt.Fprintln(out, renderAgent(a))
	}
	return nil
}

func runSchema(cmd *cobra.Command, _ []string) error {
	data, err := json.MarshalIndent(roster.Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runTranscripts(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	transcripts, err := store.NewSQLiteTranscriptStore(ctx, cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer transcripts.Close()

	var owner *string
	if transcriptsOwner != "" {
		owner = &transcriptsOwner
	}
	runs, err := service.NewTranscriptService(transcripts).List(ctx, owner)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("no stored discussions"))
		return nil
	}
	for _, r := range runs {
		fmt.Fprintln(out, renderStoredRun(r))
	}
	return nil
}

func runRate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	iteration, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("iteration must be a number: %w", err)
	}

	key := model.RatingKey{RunID: args[0], Iteration: iteration, AgentName: args[2]}
	l := ledger.Load(cmd.Context(), ledger.NewFilePersister(cfg.Ledger.Path))

	counters, err := service.NewRatingService(l).Rate(cmd.Context(), key, model.ParseVoteKind(strings.ToLower(args[3])))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s #%d  %s %d  %s %d\n",
		key.AgentName, key.Iteration,
		agentStyle(model.PersonalityVisionary).Render("up"), counters.Upvotes,
		agentStyle(model.PersonalityCritical).Render("down"), counters.Downvotes)
	return nil
}

