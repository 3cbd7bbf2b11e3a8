package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/cloudhut/lagtracker/controller"
	"github.com/cloudhut/lagtracker/logstore"
)

// PositionCommand moves the committed position of a consumer group.
type PositionCommand struct {
	logName     string
	group       string
	reset       bool
	toEnd       bool
	toTimestamp string
}

func (c *PositionCommand) Name() string  { return "position" }
func (c *PositionCommand) Short() string { return "Reset, advance or seek the position of a consumer group" }

func (c *PositionCommand) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.logName, "log-name", "l", "", "Log of the consumer group")
	fs.StringVarP(&c.group, "group", "g", "", "Consumer group to move")
	fs.BoolVar(&c.reset, "reset", false, "Move to the earliest retained record")
	fs.BoolVar(&c.toEnd, "to-end", false, "Move to the end, skipping all available records")
	fs.StringVar(&c.toTimestamp, "to-timestamp", "", "Move to the first record at or after an ISO-8601 timestamp")
}

func (c *PositionCommand) Execute(ctx context.Context, env *Env) error {
	if c.logName == "" || c.group == "" {
		return fmt.Errorf("%w: --log-name and --group are required", logstore.ErrInvalidArgument)
	}
	actions := 0
	for _, set := range []bool{c.reset, c.toEnd, c.toTimestamp != ""} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("%w: exactly one of --reset, --to-end or --to-timestamp is required", logstore.ErrInvalidArgument)
	}

	var res controller.Result
	var err error
	switch {
	case c.reset:
		res, err = env.Controller.Reset(ctx, c.logName, c.group)
	case c.toEnd:
		res, err = env.Controller.AdvanceToEnd(ctx, c.logName, c.group)
	default:
		ts, parseErr := controller.ParseTimestamp(c.toTimestamp)
		if parseErr != nil {
			return parseErr
		}
		res, err = env.Controller.SeekToTimestamp(ctx, c.logName, c.group, ts)
	}

	if err != nil && len(res.Before) == 0 {
		return err
	}

	t := newTable(env.Out, "PARTITION", "FROM", "TO", "LAG_BEFORE")
	for _, committed := range res.Committed {
		before := res.Before[committed.Partition.Partition]
		t.row(strconv.Itoa(committed.Partition.Partition), formatInt(before.LowerOffset), formatInt(committed.Offset), formatInt(before.Lag))
	}
	for _, lp := range res.Unresolved {
		before := res.Before[lp.Partition]
		t.row(strconv.Itoa(lp.Partition), formatInt(before.LowerOffset), "unresolved", formatInt(before.Lag))
	}
	if flushErr := t.flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	return err
}
