// ABOUTME: CLI entrypoint for loom-chat, a one-shot agent runner configured via YAML.
// ABOUTME: Builds a provider model from config, runs a single prompt, and prints the response.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/harborai/loom/agent"
	"github.com/harborai/loom/llm"
)

var version = "dev"

// cliConfig holds configuration parsed from flags.
type cliConfig struct {
	configFile  string
	stream      bool
	verbose     bool
	showVersion bool
	prompt      string
}

func main() {
	loadDotEnvAuto()

	cfg := parseFlags()

	if cfg.showVersion {
		fmt.Printf("loom-chat %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

// parseFlags parses command-line flags and returns a populated cliConfig.
func parseFlags() cliConfig {
	var cfg cliConfig

	fs := flag.NewFlagSet("loom-chat", flag.ContinueOnError)
	fs.StringVar(&cfg.configFile, "config", "loom.yaml", "Path to the agent config file")
	fs.BoolVar(&cfg.stream, "stream", false, "Stream the response as it arrives")
	fs.BoolVar(&cfg.verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: loom-chat [flags] \"prompt\"")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Run a one-shot agent conversation against a configured model.")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if fs.NArg() > 0 {
		cfg.prompt = fs.Arg(0)
	}

	return cfg
}

// run executes one agent conversation. Returns an exit code.
func run(cfg cliConfig) int {
	if cfg.prompt == "" {
		fmt.Fprintln(os.Stderr, "error: a prompt argument is required")
		return 2
	}

	agentCfg, err := loadConfig(cfg.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	model, err := buildModel(context.Background(), agentCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if cfg.verbose {
		fmt.Fprintf(os.Stderr, "using %s/%s\n", model.Provider(), model.ModelID())
	}

	a := buildAgent(agentCfg, model)
	req := agent.AgentRequest[struct{}]{Input: []agent.AgentItem{agent.UserItem(cfg.prompt)}}

	if cfg.stream {
		return runStreaming(a, req)
	}
	return runBlocking(a, req)
}

func runBlocking(a *agent.Agent[struct{}], req agent.AgentRequest[struct{}]) int {
	resp, err := a.Run(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println(resp.Text())
	return 0
}

func runStreaming(a *agent.Agent[struct{}], req agent.AgentRequest[struct{}]) int {
	events, err := a.RunStream(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	for ev := range events {
		switch {
		case ev.Partial != nil && ev.Partial.Delta != nil:
			if text := ev.Partial.Delta.Part.Text; text != nil {
				fmt.Print(text.Text)
			}
		case ev.Err != nil:
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", ev.Err)
			return 1
		case ev.Response != nil:
			fmt.Println()
		}
	}
	return 0
}

// buildAgent assembles the agent from config, wiring optional sampling
// parameters only when set.
func buildAgent(cfg *agentConfig, model llm.LanguageModel) *agent.Agent[struct{}] {
	opts := []agent.AgentOption[struct{}]{}
	if cfg.SystemPrompt != "" {
		opts = append(opts, agent.WithInstructions(agent.Instruction[struct{}](cfg.SystemPrompt)))
	}
	if cfg.MaxTurns > 0 {
		opts = append(opts, agent.WithMaxTurns[struct{}](cfg.MaxTurns))
	}
	if cfg.Temperature != nil {
		opts = append(opts, agent.WithTemperature[struct{}](*cfg.Temperature))
	}
	for _, server := range cfg.MCPServers {
		opts = append(opts, agent.WithToolkits[struct{}](mcpToolkitFromConfig(server)))
	}
	return agent.New(cfg.Name, model, opts...)
}

func mcpToolkitFromConfig(server mcpServerConfig) agent.Toolkit[struct{}] {
	if server.URL != "" {
		return agent.NewMCPToolkit[struct{}](agent.MCPParams{
			HTTP: &agent.MCPStreamableHTTPParams{
				URL:           server.URL,
				Authorization: os.Getenv(server.AuthorizationEnv),
			},
		})
	}
	return agent.NewMCPToolkit[struct{}](agent.MCPParams{
		Stdio: &agent.MCPStdioParams{Command: server.Command, Args: server.Args},
	})
}
