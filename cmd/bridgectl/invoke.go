package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"guru-bridge/client"
)

var (
	invokeTimeout time.Duration
	invokeScript  bool
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <method> [json-arguments]",
	Short: "Run calls against an in-process bridge and print the result envelopes",
	Long: `Run one call, or with --script one call per stdin line ("<method> <json-arguments>"),
against a fresh bridge and sqflite plugin. Each result envelope is printed on its own line.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if invokeScript {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.RangeArgs(1, 2)(cmd, args)
	},
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().DurationVar(&invokeTimeout, "timeout", 30*time.Second, "Timeout per call")
	invokeCmd.Flags().BoolVar(&invokeScript, "script", false, "Read calls from stdin")
	invokeCmd.Flags().StringVar(&traceOut, "trace", "", "Record the calls to this trace file")
}

type scriptedCall struct {
	method string
	args   string
}

func runInvoke(cmd *cobra.Command, args []string) error {
	calls, err := collectCalls(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := startRuntime(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, rt)

	c := client.New(rt.Bridge)
	for _, call := range calls {
		ctx, cancel := context.WithTimeout(cmd.Context(), invokeTimeout)
		envelope, err := c.CallJSON(ctx, call.method, call.args)
		cancel()
		if err != nil {
			return fmt.Errorf("%s: %w", call.method, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), envelope)
	}
	return nil
}

func collectCalls(cmd *cobra.Command, args []string) ([]scriptedCall, error) {
	if !invokeScript {
		call := scriptedCall{method: args[0], args: "null"}
		if len(args) == 2 {
			call.args = args[1]
		}
		return []scriptedCall{call}, nil
	}

	var calls []scriptedCall
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		method, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		if rest == "" {
			rest = "null"
		}
		calls = append(calls, scriptedCall{method: method, args: rest})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return calls, nil
}
