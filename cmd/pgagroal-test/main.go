// Command pgagroal-test runs the registered test suite: a constructor-
// registered set of test compilation units, filtered by name or module,
// executed with crash-banner protection, and reported with a pass/fail/
// skip summary.
package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/Userfrom1995/pgagroal/tests/artspec"
	_ "github.com/Userfrom1995/pgagroal/tests/canary"
	_ "github.com/Userfrom1995/pgagroal/tests/dequespec"

	"github.com/Userfrom1995/pgagroal/internal/mctf"
)

const mctfLogPath = "/tmp/pgagroal-test/log/pgagroal-test.log"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] <project_directory> <user> <database>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	fmt.Fprintf(os.Stderr, "  -t NAME   Run only tests whose name contains NAME\n")
	fmt.Fprintf(os.Stderr, "  -m NAME   Run all tests in module NAME\n")
	fmt.Fprintf(os.Stderr, "  -h        Show this help message\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s <dir> <user> <db>              Run full test suite\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s -m dequespec <dir> <user> <db> Run all tests in the dequespec module\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s -t sort <dir> <user> <db>      Run tests whose name contains \"sort\"\n", os.Args[0])
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pgagroal-test", flag.ContinueOnError)
	fs.Usage = usage
	testName := fs.String("t", "", "run only tests whose name contains NAME")
	moduleName := fs.String("m", "", "run all tests in module NAME")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *testName != "" && *moduleName != "" {
		fmt.Fprintln(os.Stderr, "Error: cannot specify both -t and -m")
		usage()
		return 1
	}

	rest := fs.Args()
	if len(rest) < 3 {
		fmt.Fprintln(os.Stderr, "Error: missing required arguments (project_directory, user, database)")
		usage()
		return 1
	}
	if len(rest) > 3 {
		fmt.Fprintln(os.Stderr, "Error: too many arguments")
		usage()
		return 1
	}
	_, _, _ = rest[0], rest[1], rest[2] // project_dir, user, database: reserved for a future live-pooler test client

	filterType := mctf.FilterNone
	filter := ""
	switch {
	case *testName != "":
		filterType, filter = mctf.FilterTest, *testName
	case *moduleName != "":
		filterType, filter = mctf.FilterModule, *moduleName
	}

	mctf.InstallCrashHandlers()

	r := mctf.NewRunner()
	if err := r.OpenLog(mctfLogPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to open MCTF log file at %q: %v\n", mctfLogPath, err)
	}
	defer r.CloseLog()

	r.LogEnvironment()
	failed := r.Run(filterType, filter)
	r.PrintSummary()

	if failed != 0 {
		return 1
	}
	return 0
}
