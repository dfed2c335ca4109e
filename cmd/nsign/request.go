package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rexliu/nsign/pkg/core"
	"github.com/rexliu/nsign/pkg/ipc"
)

// requestView mirrors the daemon's submit and pending results.
type requestView struct {
	Request struct {
		Method   string `json:"type"`
		ID       string `json:"id"`
		XSuccess string `json:"xSuccess"`
		XError   string `json:"xError"`
		XCancel  string `json:"xCancel"`
	} `json:"request"`
	Description string                `json:"description"`
	Preview     []core.PreviewSection `json:"preview"`
	State       string                `json:"state"`
}

// outcomeView mirrors the daemon's approve and reject results.
type outcomeView struct {
	OK          bool              `json:"ok"`
	Method      string            `json:"method"`
	ID          string            `json:"id"`
	Result      map[string]string `json:"result"`
	Code        string            `json:"code"`
	Reason      string            `json:"reason"`
	CallbackURL string            `json:"callbackUrl"`
	Delivered   bool              `json:"delivered"`
	Message     string            `json:"message"`
}

var (
	openApprove bool
	openReject  bool

	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data struct {
				Now      string `json:"now"`
				State    string `json:"state"`
				Watchers int    `json:"watchers"`
			}
			if err := rpcCall(cmd.Context(), "ping", nil, &data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "daemon responded: now=%s state=%s watchers=%d\n", data.Now, data.State, data.Watchers)
			return nil
		},
	}

	checkCmd = &cobra.Command{
		Use:   "check <url>",
		Short: "Parse a signer link locally and show what it asks for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !core.IsSignerURL(args[0]) {
				return core.ErrNotSignerURL
			}
			req, err := core.Parse(args[0])
			if err != nil {
				protoErr := core.Classify(err)
				fmt.Fprintf(out, "%s\n", protoErr.Friendly())
				if errURL, ok := core.BuildErrorURL(req, protoErr.Code, protoErr.Reason); ok {
					fmt.Fprintf(out, "error callback: %s\n", errURL)
				}
				return fmt.Errorf("%s", protoErr.Code)
			}
			renderRequest(out, core.Describe(req), req.ID, core.Preview(req))
			return nil
		},
	}

	openCmd = &cobra.Command{
		Use:   "open <url>",
		Short: "Submit a signer link to the daemon and answer it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if openApprove && openReject {
				return fmt.Errorf("--approve and --reject are mutually exclusive")
			}
			ctx := cmd.Context()
			client, err := dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			var view requestView
			if err := client.Call(ctx, "submit", map[string]string{"url": args[0]}, &view); err != nil {
				return describeRPCError(err)
			}
			out := cmd.OutOrStdout()
			renderRequest(out, view.Description, view.Request.ID, view.Preview)

			method := "reject"
			switch {
			case openApprove:
				method = "approve"
			case openReject:
			default:
				ok, err := confirm("Approve this request?", false)
				if err != nil {
					return err
				}
				if ok {
					method = "approve"
				}
			}
			var outcome outcomeView
			if err := client.Call(ctx, method, nil, &outcome); err != nil {
				return describeRPCError(err)
			}
			return renderOutcome(out, outcome)
		},
	}

	pendingCmd = &cobra.Command{
		Use:   "pending",
		Short: "Show the request waiting for a decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var view requestView
			err := rpcCall(cmd.Context(), "pending", nil, &view)
			if ipc.IsCode(err, ipc.CodeNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending request")
				return nil
			}
			if err != nil {
				return err
			}
			renderRequest(cmd.OutOrStdout(), view.Description, view.Request.ID, view.Preview)
			return nil
		},
	}

	approveCmd = decisionCommand("approve", "Approve the pending request")
	rejectCmd  = decisionCommand("reject", "Reject the pending request")

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Stream callback URLs published by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Subscribed to callbacks (Ctrl+C to exit)")
			err = client.Stream(ctx, "subscribe_callbacks", nil, func(raw json.RawMessage) error {
				fmt.Fprintln(out, formatCallbackEvent(raw))
				return nil
			})
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		},
	}
)

func init() {
	openCmd.Flags().BoolVar(&openApprove, "approve", false, "approve without prompting")
	openCmd.Flags().BoolVar(&openReject, "reject", false, "reject without prompting")
}

func decisionCommand(method, short string) *cobra.Command {
	return &cobra.Command{
		Use:   method,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var outcome outcomeView
			if err := rpcCall(cmd.Context(), method, nil, &outcome); err != nil {
				return describeRPCError(err)
			}
			return renderOutcome(cmd.OutOrStdout(), outcome)
		},
	}
}

func renderRequest(w io.Writer, description, id string, preview []core.PreviewSection) {
	fmt.Fprintln(w, description)
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	if len(preview) == 0 {
		return
	}
	table := newTable(w)
	table.SetHeader([]string{"Field", "Value"})
	for _, section := range preview {
		table.Append([]string{section.Label, section.Value})
	}
	table.Render()
}

func renderOutcome(w io.Writer, o outcomeView) error {
	if o.OK {
		fmt.Fprintln(w, o.Message)
	} else {
		fmt.Fprintf(w, "%s (%s)\n", o.Message, o.Code)
	}
	switch {
	case o.Delivered:
		fmt.Fprintf(w, "callback: %s\n", o.CallbackURL)
	case !o.OK:
		fmt.Fprintln(w, "caller gave no error destination; nothing was sent")
	}
	return nil
}

// describeRPCError prefers the friendly protocol text when the daemon
// rejected a link.
func describeRPCError(err error) error {
	var rpcErr *ipc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	if friendly, ok := rpcErr.Details["friendly"].(string); ok && friendly != "" {
		return fmt.Errorf("%s", friendly)
	}
	switch rpcErr.Code {
	case ipc.CodeBusy:
		return fmt.Errorf("signer is busy with another request")
	case ipc.CodeNotFound:
		return fmt.Errorf("no pending request")
	}
	return err
}

func formatCallbackEvent(raw json.RawMessage) string {
	var ev struct {
		Type  string `json:"type"`
		URL   string `json:"url"`
		At    int64  `json:"at"`
		Debug *struct {
			Kind   string `json:"kind"`
			ID     string `json:"id"`
			Code   string `json:"code"`
			Reason string `json:"reason"`
		} `json:"debug"`
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return string(raw)
	}
	ts := time.UnixMilli(ev.At).Format(time.TimeOnly)
	if ev.Debug == nil {
		return fmt.Sprintf("%s %s %s", ts, ev.Type, ev.URL)
	}
	parts := []string{ts, "debug", ev.Debug.Kind}
	for _, kv := range [][2]string{{"id", ev.Debug.ID}, {"code", ev.Debug.Code}, {"reason", ev.Debug.Reason}} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return strings.Join(parts, " ")
}
