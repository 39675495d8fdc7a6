// Command dispatch for the docdb tool.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/maruel/docdb/internal/docdb"
)

type command struct {
	name string
	args string
	help string
	// min and max bound the number of arguments; max < 0 means unbounded.
	min, max int
	run      func(ctx context.Context, db *docdb.Store, w io.Writer, args []string) error
}

var commands = []command{
	{"get", "<key>", "print the value of key", 1, 1, cmdGet},
	{"has", "<key>", "print whether key exists", 1, 1, cmdHas},
	{"set", "<key> <value>", "store value under key", 2, 2, cmdSet},
	{"add", "<key> <value>", "alias of set", 2, 2, cmdSet},
	{"insert", "<value>", "store value under a generated key and print the key", 1, 1, cmdInsert},
	{"delete", "<key>", "remove key", 1, 1, cmdDelete},
	{"clear", "", "remove every key", 0, 0, cmdClear},
	{"push", "[-unique] <key> <value>", "append value to the array under key", 2, 3, cmdPush},
	{"pull", "<key> <value>", "remove every occurrence of value from the array under key", 2, 2, cmdPull},
	{"keys", "", "list keys", 0, 0, cmdKeys},
	{"values", "", "list values", 0, 0, cmdValues},
	{"size", "", "print the number of entries", 0, 0, cmdSize},
	{"all", "", "print the whole collection", 0, 0, cmdAll},
	{"search", "<field> <value>", "print object entries whose field equals value", 2, 2, cmdSearch},
	{"where", "<field> <op> <value>", "print object entries matching field op value (eq ne gt lt ge le contains)", 3, 3, cmdWhere},
	{"sort", "<field> [asc|desc]", "print object entries holding field, ordered by it", 1, 2, cmdSort},
	{"save", "", "rewrite the snapshot", 0, 0, cmdSave},
	{"reload", "", "reload the snapshot, recovering from the backup if needed", 0, 0, cmdReload},
	{"watch", "", "reload whenever the snapshot changes on disk until interrupted", 0, 0, cmdWatch},
}

func run(ctx context.Context, db *docdb.Store, w io.Writer, args []string) error {
	name, rest := args[0], args[1:]
	for i := range commands {
		c := &commands[i]
		if c.name != name {
			continue
		}
		if len(rest) < c.min || (c.max >= 0 && len(rest) > c.max) {
			return fmt.Errorf("usage: docdb %s %s", c.name, c.args)
		}
		return c.run(ctx, db, w, rest)
	}
	return fmt.Errorf("unknown command: %q", name)
}

// parseValue decodes a command line argument as JSON, falling back to the raw
// string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func cmdGet(_ context.Context, db *docdb.Store, w io.Writer, args []string) error {
	v, ok := db.Get(args[0])
	if !ok {
		return fmt.Errorf("key not found: %q", args[0])
	}
	return printJSON(w, v)
}

func cmdHas(_ context.Context, db *docdb.Store, w io.Writer, args []string) error {
	return printJSON(w, db.Has(args[0]))
}

func cmdSet(_ context.Context, db *docdb.Store, _ io.Writer, args []string) error {
	return db.Set(args[0], parseValue(args[1]))
}

func cmdInsert(_ context.Context, db *docdb.Store, w io.Writer, args []string) error {
	key, err := db.Insert(parseValue(args[0]))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, key)
	return err
}

func cmdDelete(_ context.Context, db *docdb.Store, _ io.Writer, args []string) error {
	return db.Delete(args[0])
}

func cmdClear(_ context.Context, db *docdb.Store, _ io.Writer, _ []string) error {
	return db.Clear()
}

func cmdPush(_ context.Context, db *docdb.Store, _ io.Writer, args []string) error {
	var opts []docdb.PushOption
	if len(args) == 3 {
		if args[0] != "-unique" {
			return fmt.Errorf("unknown push flag: %q", args[0])
		}
		opts = append(opts, docdb.Unique())
		args = args[1:]
	}
	return db.Push(args[0], parseValue(args[1]), opts...)
}

func cmdPull(_ context.Context, db *docdb.Store, _ io.Writer, args []string) error {
	return db.RemoveFromArray(args[0], parseValue(args[1]))
}

func cmdKeys(_ context.Context, db *docdb.Store, w io.Writer, _ []string) error {
	keys := db.Keys()
	if len(keys) == 0 {
		return nil
	}
	_, err := io.WriteString(w, strings.Join(keys, "\n")+"\n")
	return err
}

func cmdValues(_ context.Context, db *docdb.Store, w io.Writer, _ []string) error {
	return printJSON(w, db.Values())
}

func cmdSize(_ context.Context, db *docdb.Store, w io.Writer, _ []string) error {
	_, err := fmt.Fprintf(w, "%d\n", db.Size())
	return err
}

func cmdAll(_ context.Context, db *docdb.Store, w io.Writer, _ []string) error {
	return printJSON(w, db.All())
}

func cmdSearch(_ context.Context, db *docdb.Store, w io.Writer, args []string) error {
	return printJSON(w, db.Search(args[0], parseValue(args[1])))
}

func cmdWhere(_ context.Context, db *docdb.Store, w io.Writer, args []string) error {
	op, err := docdb.ParseOp(args[1])
	if err != nil {
		return err
	}
	res, err := db.Where(args[0], op, parseValue(args[2]))
	if err != nil {
		return err
	}
	return printJSON(w, res)
}

func cmdSort(_ context.Context, db *docdb.Store, w io.Writer, args []string) error {
	order := docdb.Ascending
	if len(args) == 2 {
		var err error
		if order, err = docdb.ParseOrder(args[1]); err != nil {
			return err
		}
	}
	entries := db.Sort(args[0], order)
	if entries == nil {
		entries = []docdb.Entry{}
	}
	return printJSON(w, entries)
}

func cmdSave(_ context.Context, db *docdb.Store, _ io.Writer, _ []string) error {
	return db.Save()
}

func cmdReload(_ context.Context, db *docdb.Store, w io.Writer, _ []string) error {
	if err := db.Reload(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d\n", db.Size())
	return err
}

func cmdWatch(ctx context.Context, db *docdb.Store, _ io.Writer, _ []string) error {
	err := watch(ctx, db, nil)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
