package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Command identifies one of the trading commands a worker accepts. The
// set is closed: dispatch is a lookup over this enum, and unknown names
// route to a single fallback branch.
type Command string

const (
	CmdAdd            Command = "ADD"
	CmdQuote          Command = "QUOTE"
	CmdBuy            Command = "BUY"
	CmdCommitBuy      Command = "COMMIT_BUY"
	CmdCancelBuy      Command = "CANCEL_BUY"
	CmdSell           Command = "SELL"
	CmdCommitSell     Command = "COMMIT_SELL"
	CmdCancelSell     Command = "CANCEL_SELL"
	CmdSetBuyAmount   Command = "SET_BUY_AMOUNT"
	CmdSetBuyTrigger  Command = "SET_BUY_TRIGGER"
	CmdCancelSetBuy   Command = "CANCEL_SET_BUY"
	CmdSetSellAmount  Command = "SET_SELL_AMOUNT"
	CmdSetSellTrigger Command = "SET_SELL_TRIGGER"
	CmdCancelSetSell  Command = "CANCEL_SET_SELL"
	CmdDumplog        Command = "DUMPLOG"
	CmdDisplaySummary Command = "DISPLAY_SUMMARY"
)

var knownCommands = map[Command]bool{
	CmdAdd:            true,
	CmdQuote:          true,
	CmdBuy:            true,
	CmdCommitBuy:      true,
	CmdCancelBuy:      true,
	CmdSell:           true,
	CmdCommitSell:     true,
	CmdCancelSell:     true,
	CmdSetBuyAmount:   true,
	CmdSetBuyTrigger:  true,
	CmdCancelSetBuy:   true,
	CmdSetSellAmount:  true,
	CmdSetSellTrigger: true,
	CmdCancelSetSell:  true,
	CmdDumplog:        true,
	CmdDisplaySummary: true,
}

// Known reports whether cmd is part of the command surface.
func (c Command) Known() bool {
	return knownCommands[c]
}

// Request is one parsed command line: the transaction sequence number,
// the command, and its raw comma-separated parameters.
type Request struct {
	Seq    int64
	Cmd    Command
	Params []string
}

// UserID returns the first parameter, which is the user id for every
// command except a DUMPLOG of the full log.
func (r *Request) UserID() string {
	if len(r.Params) == 0 {
		return ""
	}
	return r.Params[0]
}

// ParamString re-joins the parameters for response and audit text.
func (r *Request) ParamString() string {
	return strings.Join(r.Params, ",")
}

// ParseLine parses one workload line of the form
//
//	[<seq>] COMMAND,param1,param2,...
//
// Whitespace around the line is ignored. The command name is not
// validated against the known set here; the dispatcher owns the
// unknown-command branch so that even an unknown name produces exactly
// one response carrying the sequence number.
func ParseLine(line string) (*Request, error) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, "[") {
		return nil, &ValidationError{Message: fmt.Sprintf("malformed command line %q: missing sequence number", line)}
	}
	end := strings.Index(s, "]")
	if end < 0 {
		return nil, &ValidationError{Message: fmt.Sprintf("malformed command line %q: unterminated sequence number", line)}
	}
	seq, err := strconv.ParseInt(strings.TrimSpace(s[1:end]), 10, 64)
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("malformed command line %q: bad sequence number", line)}
	}

	rest := strings.TrimSpace(s[end+1:])
	if rest == "" {
		return nil, &ValidationError{Message: fmt.Sprintf("malformed command line %q: missing command", line)}
	}
	parts := strings.Split(rest, ",")
	req := &Request{
		Seq: seq,
		Cmd: Command(strings.TrimSpace(parts[0])),
	}
	for _, p := range parts[1:] {
		req.Params = append(req.Params, strings.TrimSpace(p))
	}
	return req, nil
}
