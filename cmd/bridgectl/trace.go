package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"guru-bridge/client"
	"guru-bridge/codec"
	"guru-bridge/protocol"
	"guru-bridge/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect and replay recorded call traces",
}

var traceDumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print every frame of a trace",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceDump,
}

var traceReplayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Re-run the recorded calls and report envelopes that differ",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceReplay,
}

func init() {
	traceCmd.AddCommand(traceDumpCmd)
	traceCmd.AddCommand(traceReplayCmd)
}

func openTrace(path string) (*trace.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r, err := trace.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, f, nil
}

func runTraceDump(cmd *cobra.Command, args []string) error {
	r, f, err := openTrace(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	s := r.Session()
	fmt.Fprintf(cmd.OutOrStdout(), "session %s started %s\n", s.ID, s.Started.Format("2006-01-02 15:04:05.000"))

	jsonCodec := codec.GetCodec(codec.CodecTypeJSON)
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch e.Type {
		case protocol.MsgTypeCall:
			argsJSON, err := jsonCodec.Encode(e.Arguments)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.Type, e.CallID, e.Method, argsJSON)
		default:
			fmt.Fprintf(tw, "%s\t%d\t\t%s\n", e.Type, e.CallID, e.Envelope)
		}
	}
}

func runTraceReplay(cmd *cobra.Command, args []string) error {
	r, f, err := openTrace(args[0])
	if err != nil {
		return err
	}
	records, err := r.ReadAll()
	f.Close()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Trace.Path = ""
	rt, err := startRuntime(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, rt)

	c := client.New(rt.Bridge)
	jsonCodec := codec.GetCodec(codec.CodecTypeJSON)
	replayed, differ := 0, 0
	for _, rec := range records {
		if rec.Method == "" {
			continue
		}
		argsJSON, err := jsonCodec.Encode(rec.Arguments)
		if err != nil {
			return fmt.Errorf("call %d: %w", rec.CallID, err)
		}
		got, err := c.CallJSON(context.Background(), rec.Method, string(argsJSON))
		if err != nil {
			return fmt.Errorf("call %d %s: %w", rec.CallID, rec.Method, err)
		}
		replayed++
		if rec.Envelope != "" && got != rec.Envelope {
			differ++
			fmt.Fprintf(cmd.OutOrStdout(), "call %d %s differs\n  recorded: %s\n  replayed: %s\n",
				rec.CallID, rec.Method, rec.Envelope, got)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d calls, %d differ\n", replayed, differ)
	if differ > 0 {
		return fmt.Errorf("%d envelopes differ", differ)
	}
	return nil
}
