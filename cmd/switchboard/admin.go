package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/arbiterhq/Switchboard/internal/adapter/postgres"
	"github.com/arbiterhq/Switchboard/internal/config"
	"github.com/arbiterhq/Switchboard/internal/domain/agent"
	"github.com/arbiterhq/Switchboard/internal/service"
)

// runAdmin dispatches admin subcommands (register-agent, list-agents,
// deactivate-agent).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "register-agent":
		return runAdminRegisterAgent(args[1:])
	case "list-agents":
		return runAdminListAgents(args[1:])
	case "deactivate-agent":
		return runAdminDeactivateAgent(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: switchboard admin <command> [options]

Commands:
  register-agent     Register an agent in the directory
  list-agents        List all directory entries
  deactivate-agent   Deactivate an agent
  help               Show this help message

Examples:
  switchboard admin register-agent --id agent-1 --name "Code Reviewer" --services review,lint
  switchboard admin list-agents
  switchboard admin deactivate-agent --id agent-1
`)
}

func loadAdminDeps() (*service.RegistrarService, func(), error) {
	cfg, _, err := config.LoadWithCLI(config.CLIFlags{})
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	registrar := service.NewRegistrarService(postgres.NewStore(pool))

	cleanup := func() {
		pool.Close()
	}
	return registrar, cleanup, nil
}

func runAdminRegisterAgent(args []string) error {
	fs := flag.NewFlagSet("register-agent", flag.ContinueOnError)
	id := fs.String("id", "", "agent identifier (required)")
	name := fs.String("name", "", "agent display name (required)")
	services := fs.String("services", "", "comma-separated service names")
	skills := fs.String("skills", "", "comma-separated skill names")
	maxTasks := fs.Int("max-concurrent", 0, "maximum concurrent tasks (0 = unlimited)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *id == "" {
		return fmt.Errorf("--id is required")
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	registrar, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	rec, err := registrar.Register(ctx, agent.RegisterRequest{
		ID:                 *id,
		Name:               *name,
		Services:           splitCSV(*services),
		Skills:             splitCSV(*skills),
		MaxConcurrentTasks: *maxTasks,
	})
	if err != nil {
		return fmt.Errorf("register agent: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Agent registered: %s (id=%s, services=%s)\n",
		rec.Name, rec.ID, strings.Join(rec.Capabilities.Services, ","))
	return nil
}

func runAdminListAgents(args []string) error {
	fs := flag.NewFlagSet("list-agents", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	registrar, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	records, err := registrar.List(ctx)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No agents found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tACTIVE\tSTATUS\tSERVICES\tACTIVE_TASKS")
	for i := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%d\n",
			records[i].ID, records[i].Name, records[i].Active,
			records[i].Capabilities.Status,
			strings.Join(records[i].Capabilities.Services, ","),
			records[i].Capabilities.ActiveTasks)
	}
	return w.Flush()
}

func runAdminDeactivateAgent(args []string) error {
	fs := flag.NewFlagSet("deactivate-agent", flag.ContinueOnError)
	id := fs.String("id", "", "agent identifier (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	registrar, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := registrar.Deactivate(ctx, *id); err != nil {
		return fmt.Errorf("deactivate agent: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Agent deactivated: %s\n", *id)
	return nil
}

// splitCSV splits a comma-separated flag value, dropping empty entries.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
