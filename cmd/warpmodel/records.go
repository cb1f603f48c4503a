package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/warpmodel/bootstrap"
	"github.com/artpar/warpmodel/core/apperr"
	apihttp "github.com/artpar/warpmodel/core/channel/http"
	"github.com/artpar/warpmodel/core/formatter"
	"github.com/artpar/warpmodel/core/runtime"
)

var (
	outputFormat string
	findWhere    string
	findSelect   string
	findInclude  string
	findSort     string
	findLimit    int
	findSkip     int
)

var findCmd = &cobra.Command{
	Use:   "find <className>",
	Short: "List the records of a class",
	Long: `Query the records of a class without starting the server.

Examples:
  warpmodel find Post
  warpmodel find Post --where '{"views":{"gt":10}}' --sort '[{"views":-1}]'
  warpmodel find Post --include author.username -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(rt *runtime.Runtime) error {
			return runFind(cmd.OutOrStdout(), rt, args[0])
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <className> <id>",
	Short: "Show one record of a class",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(rt *runtime.Runtime) error {
			return runGet(cmd.OutOrStdout(), rt, args[0], args[1])
		})
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(getCmd)

	for _, c := range []*cobra.Command{findCmd, getCmd} {
		c.Flags().StringVarP(&outputFormat, "output", "o", "table",
			"output format ("+strings.Join(formatter.List(), ", ")+")")
		c.Flags().StringVar(&findSelect, "select", "", "comma separated keys to show")
		c.Flags().StringVar(&findInclude, "include", "", "comma separated pointer attributes to expand")
	}

	findCmd.Flags().StringVar(&findWhere, "where", "", "JSON condition")
	findCmd.Flags().StringVar(&findSort, "sort", "", `JSON sort, e.g. [{"views":-1}]`)
	findCmd.Flags().IntVar(&findLimit, "limit", apihttp.DefaultLimit, "maximum number of records")
	findCmd.Flags().IntVar(&findSkip, "skip", 0, "number of records to skip")
}

// withRuntime opens the configured database and runs fn. Logs go to stderr
// so they never mix with formatted output.
func withRuntime(fn func(rt *runtime.Runtime) error) error {
	app, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgFile, LogOutput: os.Stderr})
	if err != nil {
		return err
	}
	defer app.Shutdown()
	return fn(app.Runtime)
}

func runFind(out io.Writer, rt *runtime.Runtime, className string) error {
	f, err := outputFormatter()
	if err != nil {
		return err
	}
	m, err := lookup(rt, className)
	if err != nil {
		return err
	}

	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("where", findWhere)
	set("select", findSelect)
	set("include", findInclude)
	set("sort", findSort)
	q.Set("limit", strconv.Itoa(findLimit))
	q.Set("skip", strconv.Itoa(findSkip))

	opts, err := apihttp.ParseFindOptions(q)
	if err != nil {
		return err
	}

	records, err := m.Find(context.Background(), opts)
	if err != nil {
		f.FormatError(out, err)
		return err
	}
	return f.FormatList(out, m.Definition(), records, columnOptions(opts))
}

func runGet(out io.Writer, rt *runtime.Runtime, className, id string) error {
	f, err := outputFormatter()
	if err != nil {
		return err
	}
	m, err := lookup(rt, className)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("select", findSelect)
	q.Set("include", findInclude)
	opts, err := apihttp.ParseFindOptions(q)
	if err != nil {
		return err
	}

	rec, err := m.First(context.Background(), apihttp.ParseID(id), opts.Include)
	if err != nil {
		f.FormatError(out, err)
		return err
	}
	if rec == nil {
		return apperr.New(apperr.ObjectNotFound, "Object not found")
	}
	return f.FormatRecord(out, m.Definition(), rec, columnOptions(opts))
}

func lookup(rt *runtime.Runtime, className string) (*runtime.Model, error) {
	m, ok := rt.Model(className)
	if !ok {
		return nil, apperr.New(apperr.ObjectNotFound, "Class `%s` not found", className)
	}
	return m, nil
}

func outputFormatter() (formatter.Formatter, error) {
	f, ok := formatter.Get(outputFormat)
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %s)", outputFormat, strings.Join(formatter.List(), ", "))
	}
	return f, nil
}

// columnOptions shows selected keys first, then included pointers.
func columnOptions(opts runtime.FindOptions) formatter.FormatOptions {
	if len(opts.Select) == 0 {
		return formatter.FormatOptions{}
	}
	cols := []string{"id"}
	for _, key := range opts.Select {
		cols = appendUnique(cols, key)
	}
	for _, inc := range opts.Include {
		name, _, _ := strings.Cut(inc, ".")
		cols = appendUnique(cols, name)
	}
	return formatter.FormatOptions{Columns: cols}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
