package command

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/spf13/pflag"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
	"github.com/cloudhut/lagtracker/record"
)

const maxValueLength = 256

// CatCommand prints records of a log without committing. Reading starts at the committed position of the group, or
// at the start of the partitions.
type CatCommand struct {
	logName   string
	group     string
	partition int
	count     int
	timeout   time.Duration
}

func (c *CatCommand) Name() string  { return "cat" }
func (c *CatCommand) Short() string { return "Print records of a log" }

func (c *CatCommand) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.logName, "log-name", "l", "", "Log to read")
	fs.StringVarP(&c.group, "group", "g", "", "Start at the committed position of this consumer group")
	fs.IntVarP(&c.partition, "partition", "p", -1, "Read a single partition, all partitions if negative")
	fs.IntVarP(&c.count, "count", "n", 10, "Maximum number of records to print")
	fs.DurationVar(&c.timeout, "timeout", 2*time.Second, "Stop when no record arrives within this time")
}

func (c *CatCommand) Execute(ctx context.Context, env *Env) error {
	if c.logName == "" {
		return fmt.Errorf("%w: --log-name is required", logstore.ErrInvalidArgument)
	}
	if c.count < 1 {
		return fmt.Errorf("%w: --count must be at least 1", logstore.ErrInvalidArgument)
	}
	size, err := env.Manager.Size(ctx, c.logName)
	if err != nil {
		return err
	}

	var partitions []position.LogPartition
	switch {
	case c.partition >= size:
		return fmt.Errorf("%w: log '%v' has %d partitions", logstore.ErrInvalidArgument, c.logName, size)
	case c.partition >= 0:
		partitions = append(partitions, position.LogPartition{Name: c.logName, Partition: c.partition})
	default:
		for i := 0; i < size; i++ {
			partitions = append(partitions, position.LogPartition{Name: c.logName, Partition: i})
		}
	}

	tailer, err := env.Manager.CreateTailer(ctx, c.group, partitions...)
	if err != nil {
		return err
	}
	defer tailer.Close()

	for i := 0; i < c.count; i++ {
		rec, err := tailer.Read(ctx, c.timeout)
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		printRecord(env, rec, env.Registry.Decode(rec.Message))
	}
	return nil
}

func printRecord(env *Env, rec *logstore.LogRecord, decoded record.Decoded) {
	switch d := decoded.(type) {
	case record.Typed:
		fmt.Fprintf(env.Out, "%v key=%q watermark=%v content-type=%q value=%v\n",
			rec.Offset, d.Record.Key, d.Record.Watermark, d.Record.ContentType, printable(d.Record.Value))
	case record.Opaque:
		fmt.Fprintf(env.Out, "%v key=%q opaque %d bytes value=%v\n", rec.Offset, d.Key, len(d.Bytes), printable(d.Bytes))
	case record.DecodeError:
		fmt.Fprintf(env.Out, "%v key=%q decode error: %v\n", rec.Offset, d.Key, d.Err)
	}
}

// printable renders text values quoted and truncated, binary values as their length only.
func printable(value []byte) string {
	if !utf8.Valid(value) {
		return "<binary>"
	}
	s := string(value)
	if len(s) > maxValueLength {
		s = s[:maxValueLength] + "..."
	}
	return strconv.Quote(s)
}
